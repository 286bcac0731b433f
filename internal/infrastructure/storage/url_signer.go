package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// URLSigner issues and verifies expiring HMAC-SHA256 links for the local provider
type URLSigner struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewURLSigner creates a signer; baseURL is the public prefix of the file route
func NewURLSigner(secret, baseURL string) *URLSigner {
	return &URLSigner{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Sign returns <baseURL>/<key>?expires=<unix>&signature=<hex>
func (s *URLSigner) Sign(key string, ttl time.Duration) string {
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.mac(key, expires))
	return s.baseURL + "/" + key + "?" + q.Encode()
}

// Verify checks the expiry and signature for key
func (s *URLSigner) Verify(key, expires, signature string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad expires", ErrInvalidSignature)
	}
	if s.now().Unix() > exp {
		return fmt.Errorf("%w: link expired", ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(signature), []byte(s.mac(key, exp))) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *URLSigner) mac(key string, expires int64) string {
	h := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(h, "%s\n%d", key, expires)
	return hex.EncodeToString(h.Sum(nil))
}
