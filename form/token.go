package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMismatch = "FORM_TOKEN_MISMATCH"
	TextCodeTokenExpired  = "FORM_TOKEN_EXPIRED"
)

var (
	ErrTokenMismatch = goerrors.New("form token mismatch", goerrors.CategoryAuthz).
				WithTextCode(TextCodeTokenMismatch).
				WithCode(goerrors.CodeForbidden)

	ErrTokenExpired = goerrors.New("form token expired", goerrors.CategoryAuthz).
			WithTextCode(TextCodeTokenExpired).
			WithCode(goerrors.CodeForbidden)
)

const tokenNonceLength = 16

// Tokens issues and checks stateless form tokens bound to a form name
// and a session key
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokens creates a token issuer, key must be at least 32 bytes
func NewTokens(key []byte, ttl time.Duration) *Tokens {
	if len(key) < 32 {
		panic("form token key must be at least 32 bytes")
	}
	return &Tokens{key: key, ttl: ttl, now: time.Now}
}

// Generate issues a token for form and session
func (t *Tokens) Generate(form, session string) (string, error) {
	nonce := make([]byte, tokenNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	payload := fmt.Sprintf("%d:%s:%s:%s", t.now().UTC().Unix(), hex.EncodeToString(nonce), form, session)
	token := payload + ":" + hex.EncodeToString(t.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

// Verify checks that token was issued for form and session and has not expired
func (t *Tokens) Verify(token, form, session string) error {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ErrTokenMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 5 {
		return ErrTokenMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrTokenMismatch
	}

	signature, err := hex.DecodeString(parts[4])
	if err != nil {
		return ErrTokenMismatch
	}

	if !hmac.Equal(signature, t.sign(strings.Join(parts[:4], ":"))) {
		return ErrTokenMismatch
	}

	if parts[2] != form || subtle.ConstantTimeCompare([]byte(parts[3]), []byte(session)) != 1 {
		return ErrTokenMismatch
	}

	if t.ttl > 0 && t.now().UTC().After(time.Unix(timestamp, 0).Add(t.ttl)) {
		return ErrTokenExpired
	}

	return nil
}

// Protect adds the hidden token widget to f
func (t *Tokens) Protect(f *Form, session string) error {
	token, err := t.Generate(f.Name, session)
	if err != nil {
		return err
	}
	f.Remove(TokenField)
	return f.Add(NewHidden(TokenField, token))
}

func (t *Tokens) sign(payload string) []byte {
	mac := hmac.New(sha256.New, t.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
