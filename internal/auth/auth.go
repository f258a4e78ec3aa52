// Package auth resolves the authenticated identity behind a websocket
// upgrade request. Identity comes from the encrypted session cookie, never
// from anything the client declares on the wire: fanout subscriptions are
// bound to this identity.
package auth

import (
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/bidhaus/auction-engine/pkg/errors"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwe"
	"golang.org/x/crypto/hkdf"
)

const sessionCookie = "authjs.session-token"

// Identity is the authenticated principal extracted from a session token.
type Identity struct {
	UserID string
	Email  string
}

type sessionClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// encryptionKey derives the AES-256 content-encryption key the session
// issuer uses (HKDF-SHA256 over the shared secret, keyed by cookie name).
func encryptionKey() ([]byte, error) {
	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		return nil, errors.New(errors.ErrInternalServer, "AUTH_SECRET not set")
	}

	info := "Auth.js Generated Encryption Key (" + sessionCookie + ")"
	kdf := hkdf.New(sha256.New, []byte(secret), []byte(sessionCookie), []byte(info))

	key := make([]byte, 32)
	if _, err := kdf.Read(key); err != nil {
		return nil, errors.Wrap(err, "failed to derive encryption key")
	}
	return key, nil
}

// DecryptSession decrypts a session token and returns its identity.
func DecryptSession(encryptedToken string, now time.Time) (Identity, error) {
	key, err := encryptionKey()
	if err != nil {
		return Identity{}, err
	}

	decrypted, err := jwe.Decrypt([]byte(encryptedToken), jwe.WithKey(jwa.DIRECT(), key))
	if err != nil {
		return Identity{}, errors.WrapCode(errors.ErrInvalidToken, err, "failed to decrypt session token")
	}

	var claims sessionClaims
	if err := json.Unmarshal(decrypted, &claims); err != nil {
		return Identity{}, errors.WrapCode(errors.ErrInvalidToken, err, "malformed session claims")
	}
	if claims.Sub == "" {
		return Identity{}, errors.New(errors.ErrInvalidToken, "session token has no subject")
	}
	if claims.Exp != 0 && time.Unix(claims.Exp, 0).Before(now) {
		return Identity{}, errors.New(errors.ErrInvalidToken, "session token expired")
	}

	return Identity{UserID: claims.Sub, Email: claims.Email}, nil
}

// IdentityFromRequest validates the session cookie on an incoming request.
func IdentityFromRequest(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return Identity{}, errors.New(errors.ErrInvalidToken, "missing session token cookie")
	}
	return DecryptSession(cookie.Value, time.Now())
}
