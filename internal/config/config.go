package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	APIMethodOrder   = "order"
	APIMethodPayment = "payment"

	IssuerListRadio    = "radio"
	IssuerListDropdown = "dropdown"
	IssuerListNone     = "none"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	GatewayAPIKey    string
	GatewayBaseURL   string
	GatewayAPIMethod string

	// per-store key overrides, e.g. GATEWAY_APIKEYS=nl:live_xxx,be:live_yyy
	GatewayAPIKeys map[string]string

	// DefaultIssuerListType applies to methods without an override
	DefaultIssuerListType string

	// per-method overrides, e.g. ISSUER_LIST_TYPES=ideal:dropdown,kbc:none
	IssuerListTypes map[string]string

	RedirectURL string
	WebhookURL  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers string
	KafkaTopic   string

	JWTSecret string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBPort:     os.Getenv("DB_PORT"),
		AppPort:    getEnv("APP_PORT", "8080"),
		AppEnv:     os.Getenv("APP_ENV"),

		GatewayAPIKey:    os.Getenv("GATEWAY_APIKEY"),
		GatewayAPIKeys:   parsePairs(os.Getenv("GATEWAY_APIKEYS")),
		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.mollie.com"),
		GatewayAPIMethod: normalizeAPIMethod(os.Getenv("GATEWAY_API_METHOD")),
		IssuerListTypes:  parsePairs(os.Getenv("ISSUER_LIST_TYPES")),

		DefaultIssuerListType: getEnv("ISSUER_LIST_TYPE", IssuerListRadio),

		RedirectURL: os.Getenv("PAYMENT_REDIRECT_URL"),
		WebhookURL:  os.Getenv("PAYMENT_WEBHOOK_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers: os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order.payment.transitioned"),

		JWTSecret: os.Getenv("SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// APIMethod returns the preferred transaction API for a store. Every store
// shares the process-wide setting.
func (c *Config) APIMethod(storeID string) string {
	return c.GatewayAPIMethod
}

// APIKey returns the store's own key when one is configured, the process-wide
// key otherwise.
func (c *Config) APIKey(storeID string) string {
	if k, ok := c.GatewayAPIKeys[storeID]; ok && k != "" {
		return k
	}
	return c.GatewayAPIKey
}

// IssuerListType returns how issuers of a method are presented: radio,
// dropdown or none.
func (c *Config) IssuerListType(method string) string {
	if t, ok := c.IssuerListTypes[method]; ok {
		return t
	}
	if c.DefaultIssuerListType == "" {
		return IssuerListRadio
	}
	return c.DefaultIssuerListType
}

func normalizeAPIMethod(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), APIMethodPayment) {
		return APIMethodPayment
	}
	return APIMethodOrder
}

func parsePairs(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
