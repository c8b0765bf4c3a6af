package contacts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService issues and decodes scope-tagged tokens. Implementations are
// stateless; validity is a function of the signing key, the clock, and the
// token itself.
type TokenService interface {
	Issue(subject string, scope TokenScope, ttl time.Duration) (string, error)
	Decode(token string, expected TokenScope) (*TokenClaims, error)
}

// TokenServiceImpl implements TokenService on HS256 with a single shared
// signing key.
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, issuer string, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Meant for tests that need to issue
// already-expired tokens or freeze expiry checks.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	ts.now = now
	return ts
}

// Issue signs a token whose claims are {sub, iat, exp, scope}.
func (ts *TokenServiceImpl) Issue(subject string, scope TokenScope, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", goerrors.New("token subject must not be empty", goerrors.CategoryBadInput)
	}

	now := ts.now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Decode verifies signature, expiry, and scope, in that order, and returns
// the claims. Callers get ErrTokenExpired, ErrInvalidSignature, or
// ErrWrongScope so they can tell a stale token from a tampered one from a
// token presented to the wrong operation.
func (ts *TokenServiceImpl) Decode(tokenString string, expected TokenScope) (*TokenClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ts.now))
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrInvalidSignature.Category, ErrInvalidSignature.Message).
			WithTextCode(ErrInvalidSignature.TextCode)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService decode could not map claims")
		return nil, ErrInvalidSignature
	}

	if claims.Scope != expected {
		return nil, ErrWrongScope
	}

	return claims, nil
}
