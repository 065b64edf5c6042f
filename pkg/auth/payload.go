// Package auth verifies the signed envelopes that carry deposit
// notifications from the chain-watching service.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradepoint/deposit-gateway/pkg/config"
	"github.com/tradepoint/deposit-gateway/pkg/deposit"
)

// ErrBadPayload wraps every verification failure. A payload that cannot be
// authenticated and decoded is permanently invalid and must not be retried.
var ErrBadPayload = errors.New("bad payload")

type notificationClaims struct {
	deposit.Notification
	jwt.RegisteredClaims
}

// PayloadVerifier checks the JWT signature on incoming notification payloads
// and decodes the claims into a deposit.Notification.
type PayloadVerifier struct {
	method jwt.SigningMethod
	secret []byte
	rsaKey *rsa.PublicKey
}

// NewPayloadVerifier builds a verifier for the configured signing algorithm.
func NewPayloadVerifier(cfg *config.PayloadConfig) (*PayloadVerifier, error) {
	switch cfg.Algorithm {
	case "HS256":
		if cfg.Secret == "" {
			return nil, errors.New("payload secret is required for HS256")
		}
		return &PayloadVerifier{method: jwt.SigningMethodHS256, secret: []byte(cfg.Secret)}, nil
	case "RS256":
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("failed to parse payload public key: %w", err)
		}
		return &PayloadVerifier{method: jwt.SigningMethodRS256, rsaKey: key}, nil
	default:
		return nil, fmt.Errorf("unsupported payload algorithm: %s", cfg.Algorithm)
	}
}

// Verify authenticates the payload and returns the validated notification.
func (v *PayloadVerifier) Verify(payload []byte) (*deposit.Notification, error) {
	claims := new(notificationClaims)
	_, err := jwt.ParseWithClaims(string(payload), claims, v.keyFunc,
		jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	n := claims.Notification
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &n, nil
}

func (v *PayloadVerifier) keyFunc(_ *jwt.Token) (interface{}, error) {
	if v.rsaKey != nil {
		return v.rsaKey, nil
	}
	return v.secret, nil
}
