package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"

	"github.com/turtacn/tenantjwt/internal/domain/models"
)

// SignatureHeader is the Kafka header carrying the event signature.
const SignatureHeader = "x-audit-signature"

// SignAuditEvent calculates the HMAC-SHA256 signature of the event's JSON form.
func SignAuditEvent(event *models.AuditEvent, secretKey string) (string, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", nil, err
	}
	return Sign(payload, secretKey), payload, nil
}

// Sign returns the base64 HMAC-SHA256 of payload.
func Sign(payload []byte, secretKey string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secretKey.
func VerifySignature(payload []byte, signature, secretKey string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), want)
}
