package models

import (
	"encoding/json"
	"fmt"
)

// TokenResponse is the token-service payload. The body is kept as received
// so JSON callers get it back unchanged; only body.advertising_token is read.
type TokenResponse struct {
	Raw json.RawMessage

	advertisingToken string
}

// NewTokenResponse accepts any valid JSON document. A missing or non-string
// body.advertising_token yields an empty token rather than an error.
func NewTokenResponse(raw []byte) (*TokenResponse, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrDecode)
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	tok := &TokenResponse{Raw: json.RawMessage(raw)}
	if top, ok := doc.(map[string]interface{}); ok {
		if body, ok := top["body"].(map[string]interface{}); ok {
			tok.advertisingToken, _ = body["advertising_token"].(string)
		}
	}
	return tok, nil
}

func (t *TokenResponse) AdvertisingToken() string {
	return t.advertisingToken
}

// MarshalJSON re-serializes the original payload.
func (t TokenResponse) MarshalJSON() ([]byte, error) {
	if len(t.Raw) == 0 {
		return []byte("null"), nil
	}
	return t.Raw, nil
}
