package erpclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// signer produces an OAuth-1.0a-style three-legged signature header for
// the ERP upsert endpoint: consumer key + token key signed with the
// PBKDF2-derived key over the method, URL, and body (spec.md §4.9).
// This generalizes the teacher's credential manager, which derives a
// symmetric key the same way but uses it to decrypt a stored secret
// rather than to sign a request (see DESIGN.md).
type signer struct {
	key         []byte
	consumerKey string
	tokenKey    string
}

func (s *signer) authHeader(method, url string, body []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(method))
	mac.Write([]byte("&"))
	mac.Write([]byte(url))
	mac.Write([]byte("&"))
	mac.Write(body)
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf(
		`OAuth realm="opms-erp-sync", oauth_consumer_key="%s", oauth_token="%s", oauth_signature_method="HMAC-SHA256", oauth_signature="%s"`,
		s.consumerKey, s.tokenKey, signature,
	)
}
