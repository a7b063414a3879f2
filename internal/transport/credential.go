package transport

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// checkCredential rejects a bearer token that is already expired, so a
// doomed handshake fails fast instead of burning a connect attempt.
// Opaque (non-JWT) tokens pass through untouched; the server is the
// authority on those.
func checkCredential(credential string) error {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return nil
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if exp.Before(time.Now()) {
		return fmt.Errorf("%w: credential expired at %s", ErrAuthRequired, exp.Format(time.RFC3339))
	}
	return nil
}
