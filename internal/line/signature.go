package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidSignature is returned when X-Line-Signature does not match the body.
var ErrInvalidSignature = errors.New("invalid line signature")

// VerifySignature checks the base64 HMAC-SHA256 of body under the channel
// secret against the X-Line-Signature header value.
func VerifySignature(channelSecret string, body []byte, signature string) error {
	if channelSecret == "" || signature == "" {
		return ErrInvalidSignature
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the X-Line-Signature value for body.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
