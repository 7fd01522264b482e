package webauthn

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	typeCreate = "webauthn.create"
	typeGet    = "webauthn.get"
)

// CollectedClientData is the JSON the browser signs over (via its hash).
type CollectedClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin,omitempty"`
}

func parseClientData(raw []byte) (CollectedClientData, error) {
	var cd CollectedClientData
	if len(raw) == 0 {
		return cd, reject(ReasonMalformedData, "empty client data")
	}
	if err := json.Unmarshal(raw, &cd); err != nil {
		return cd, reject(ReasonMalformedData, "client data: %v", err)
	}
	return cd, nil
}

// DecodeBase64URL decodes unpadded base64url and tolerates trailing padding.
func DecodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// EncodeBase64URL encodes b as unpadded base64url.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
