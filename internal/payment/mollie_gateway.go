package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payflow-be/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	mollieBaseURL = "https://api.mollie.com"
	mollieVersion = "v2"
	// per attempt; the invoker multiplies it by the attempt budget
	mollieTimeout = 10 * time.Second
)

type mollieGateway struct {
	keys       KeyResolver
	baseURL    string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

// NewMollieGateway authenticates every call with the key keys returns for the
// store carried by the call's context (see WithStoreID).
func NewMollieGateway(keys KeyResolver, baseURL string) Gateway {
	if baseURL == "" {
		baseURL = mollieBaseURL
	}

	return &mollieGateway{
		keys:    keys,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: mollieTimeout,
		},
	}
}

// ----------------- Wire types -----------------

type mollieAmount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

func toMollieAmount(amount decimal.Decimal, currency string) mollieAmount {
	return mollieAmount{Currency: strings.ToUpper(currency), Value: amount.StringFixed(2)}
}

type mollieLink struct {
	Href string `json:"href"`
}

type mollieResource struct {
	Resource string       `json:"resource"`
	ID       string       `json:"id"`
	Status   string       `json:"status"`
	Method   string       `json:"method"`
	Amount   mollieAmount `json:"amount"`
	Links    struct {
		Checkout *mollieLink `json:"checkout"`
	} `json:"_links"`
}

func (r *mollieResource) transaction(provider Provider) (*Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount.Value)
	if err != nil && r.Amount.Value != "" {
		return nil, fmt.Errorf("gateway returned malformed amount %q: %w", r.Amount.Value, err)
	}

	tx := &Transaction{
		ID:       r.ID,
		Provider: provider,
		Status:   r.Status,
		Method:   r.Method,
		Amount:   amount,
		Currency: r.Amount.Currency,
	}
	if r.Links.Checkout != nil {
		tx.CheckoutURL = r.Links.Checkout.Href
	}
	return tx, nil
}

type mollieErrorBody struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Field  string `json:"field"`
}

// ----------------- StartTransaction -----------------

func (m *mollieGateway) StartTransaction(ctx context.Context, provider Provider, params StartParams) (*Transaction, error) {
	amount := toMollieAmount(params.Amount, params.Currency)
	method := MethodFromCode(params.Method)
	metadata := map[string]interface{}{"order_id": params.OrderID}

	var (
		path string
		body map[string]interface{}
	)

	switch provider {
	case ProviderOrders:
		path = "/orders"
		body = map[string]interface{}{
			"amount":      amount,
			"orderNumber": params.OrderID,
			"method":      method,
			"redirectUrl": params.RedirectURL,
			"webhookUrl":  params.WebhookURL,
			"locale":      "en_US",
			"metadata":    metadata,
			"lines": []map[string]interface{}{{
				"name":        params.Description,
				"quantity":    1,
				"unitPrice":   amount,
				"totalAmount": amount,
				"vatRate":     "0.00",
				"vatAmount":   toMollieAmount(decimal.Zero, params.Currency),
			}},
		}
		if params.Issuer != "" {
			body["payment"] = map[string]interface{}{"issuer": params.Issuer}
		}
	case ProviderPayments:
		path = "/payments"
		body = map[string]interface{}{
			"amount":      amount,
			"description": params.Description,
			"method":      method,
			"redirectUrl": params.RedirectURL,
			"webhookUrl":  params.WebhookURL,
			"metadata":    metadata,
		}
		if params.Issuer != "" {
			body["issuer"] = params.Issuer
		}
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	key := ""
	if params.IdempotencyKey != "" {
		key = params.IdempotencyKey + ":" + string(provider)
	}

	var res mollieResource
	if err := m.do(ctx, http.MethodPost, path, body, key, &res); err != nil {
		return nil, err
	}
	return res.transaction(provider)
}

// ----------------- GetTransaction -----------------

func (m *mollieGateway) GetTransaction(ctx context.Context, provider Provider, id string) (*Transaction, error) {
	var path string
	switch provider {
	case ProviderOrders:
		path = "/orders/" + url.PathEscape(id)
	case ProviderPayments:
		path = "/payments/" + url.PathEscape(id)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	var res mollieResource
	if err := m.do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	return res.transaction(provider)
}

// ----------------- FetchIssuers -----------------

func (m *mollieGateway) FetchIssuers(ctx context.Context, method string) ([]Issuer, error) {
	path := "/methods/" + url.PathEscape(MethodFromCode(method)) + "?include=issuers"

	var res struct {
		Issuers json.RawMessage `json:"issuers"`
	}
	if err := m.do(ctx, http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	return NormalizeIssuers(res.Issuers)
}

// ----------------- HTTP -----------------

func (m *mollieGateway) do(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	endpoint := m.baseURL + "/" + mollieVersion + path
	storeID := StoreIDFrom(ctx)
	log := logger.FromCtx(ctx).With(
		zap.String("http_method", method),
		zap.String("path", path),
		zap.String("store_id", storeID),
	)

	apiKey := m.keys.APIKey(storeID)
	if apiKey == "" {
		log.Error("gateway API key is empty")
		return fmt.Errorf("%w for store %q", ErrNoAPIKey, storeID)
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			log.Error("failed to marshal gateway request", zap.Error(err))
			return err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		log.Error("failed creating request", zap.Error(err))
		return err
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if IsTransient(err) {
			return &TransportError{Op: method + " " + path, Err: err}
		}
		log.Error("gateway request failed", zap.Error(err))
		return fmt.Errorf("gateway request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("failed to read response body", zap.Error(err))
		return &ResponseError{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		var eb mollieErrorBody
		if json.Unmarshal(bodyBytes, &eb) == nil {
			gwErr.Title, gwErr.Detail, gwErr.Field = eb.Title, eb.Detail, eb.Field
		} else {
			gwErr.Detail = string(bodyBytes)
		}
		log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return gwErr
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		log.Error("failed decoding gateway response", zap.Error(err))
		return &ResponseError{StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}
