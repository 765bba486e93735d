package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodePayload serializes the payload as JSON wrapped in standard base64.
func EncodePayload(payload SessionPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode session payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayload reverses EncodePayload. Every failure wraps ErrMalformedToken.
func DecodePayload(encoded string) (SessionPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return SessionPayload{}, fmt.Errorf("%w: base64: %v", ErrMalformedToken, err)
	}

	var payload SessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SessionPayload{}, fmt.Errorf("%w: json: %v", ErrMalformedToken, err)
	}
	if strings.TrimSpace(payload.SubjectID) == "" || payload.ExpiresAt <= 0 {
		return SessionPayload{}, fmt.Errorf("%w: missing subject or expiry", ErrMalformedToken)
	}

	return payload, nil
}
