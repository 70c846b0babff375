// Package auth validates the signed token presented at handshake and
// resolves it to a known account.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnknownAccount = errors.New("token subject is not a known account")
)

// Claims is the token payload; the subject carries the user identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier checks a token's HMAC signature against the shared secret and
// resolves its subject through the account source. It holds no mutable
// state and is safe for concurrent use.
type Verifier struct {
	secret   []byte
	accounts store.AccountSource
}

func NewVerifier(secret string, accounts store.AccountSource) *Verifier {
	return &Verifier{secret: []byte(secret), accounts: accounts}
}

// Verify validates rawToken and returns the resolved account. The returned
// errors distinguish a missing credential, a bad one, and a subject that no
// longer resolves; callers must not leak more than that to the client.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (store.Account, error) {
	if rawToken == "" {
		return store.Account{}, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(rawToken, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return store.Account{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return store.Account{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	acc, err := v.accounts.FindAccount(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return store.Account{}, ErrUnknownAccount
		}
		return store.Account{}, fmt.Errorf("resolve account: %w", err)
	}
	return acc, nil
}
