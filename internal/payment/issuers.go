package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// NormalizeIssuers turns the gateway's issuer collection into a dense,
// 0-indexed slice. The gateway may send a JSON array or an object keyed by
// arbitrary (sparse, string) indices; either way elements come out in the
// order they appear in the document. Nothing is sorted, added or dropped.
func NormalizeIssuers(raw json.RawMessage) ([]Issuer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Issuer{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode issuers: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok || (delim != '[' && delim != '{') {
		return nil, errors.New("decode issuers: expected array or object")
	}

	issuers := make([]Issuer, 0)
	for dec.More() {
		if delim == '{' {
			// skip the key, only its position matters
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("decode issuers: %w", err)
			}
		}

		var wire issuerWire
		if err := dec.Decode(&wire); err != nil {
			return nil, fmt.Errorf("decode issuers: %w", err)
		}
		issuers = append(issuers, wire.issuer())
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode issuers: %w", err)
	}
	return issuers, nil
}

// issuerWire accepts both the gateway shape (image as an object of sizes)
// and the flat shape used by the checkout.
type issuerWire struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Image json.RawMessage `json:"image"`
}

func (w issuerWire) issuer() Issuer {
	out := Issuer{ID: w.ID, Name: w.Name}

	var flat string
	if err := json.Unmarshal(w.Image, &flat); err == nil {
		out.Image = flat
		return out
	}

	var sizes struct {
		Size1x string `json:"size1x"`
		Size2x string `json:"size2x"`
		SVG    string `json:"svg"`
	}
	if err := json.Unmarshal(w.Image, &sizes); err == nil {
		switch {
		case sizes.SVG != "":
			out.Image = sizes.SVG
		case sizes.Size2x != "":
			out.Image = sizes.Size2x
		default:
			out.Image = sizes.Size1x
		}
	}
	return out
}
