package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWT builds a Validator that parses the bearer token as a JWT, verifies
// its signature with key, and rejects both a missing token and an invalid
// one. The keyFunc signature matches jwt.Keyfunc so callers can plug in
// key rotation or a JWKS lookup rather than a single static key.
func JWT(keyFunc jwt.Keyfunc, opts ...jwt.ParserOption) Validator {
	parser := jwt.NewParser(opts...)

	return func(ctx context.Context, token *string) error {
		if token == nil {
			return fmt.Errorf("hrana: auth: missing bearer token")
		}

		parsed, err := parser.Parse(*token, keyFunc)
		if err != nil {
			return fmt.Errorf("hrana: auth: %w", err)
		}
		if !parsed.Valid {
			return fmt.Errorf("hrana: auth: token rejected")
		}

		return nil
	}
}

// StaticKey builds a jwt.Keyfunc returning the same key regardless of the
// token's header, for deployments with a single long-lived signing key.
func StaticKey(key any) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return key, nil
	}
}
