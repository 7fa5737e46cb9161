package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// #region errors

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// #endregion errors

// #region identity

// Identity is the verified caller.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// #endregion identity

// #region jwt-verifier

// JWTVerifier validates signed JWTs against an issuer and audience.
type JWTVerifier struct {
	keyfunc  jwt.Keyfunc
	issuer   string
	audience string
	methods  []string
}

// NewAuth0Verifier fetches the tenant's JWKS and verifies RS256 tokens issued
// by https://<domain>/ for audience. The JWKS is refreshed in the background
// until ctx is cancelled.
func NewAuth0Verifier(ctx context.Context, domain, audience string) (*JWTVerifier, error) {
	domain = strings.TrimSuffix(strings.TrimPrefix(domain, "https://"), "/")
	if domain == "" || audience == "" {
		return nil, fmt.Errorf("auth: domain and audience are required")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{"https://" + domain + "/.well-known/jwks.json"})
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}
	return NewJWTVerifierWithKeyfunc(jwks.Keyfunc, "https://"+domain+"/", audience, "RS256"), nil
}

// NewJWTVerifierWithKeyfunc builds a verifier on any key source. methods lists
// the accepted signing algorithms.
func NewJWTVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, audience string, methods ...string) *JWTVerifier {
	if len(methods) == 0 {
		methods = []string{"RS256"}
	}
	return &JWTVerifier{keyfunc: kf, issuer: issuer, audience: audience, methods: methods}
}

// Verify parses and validates token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(v.methods), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, v.keyfunc, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrTokenExpired
	case err != nil:
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{Subject: c.Subject, Email: c.Email, Name: c.Name}, nil
}

// #endregion jwt-verifier

// #region static

// StaticVerifier maps every request to one identity. It backs local
// development when auth is disabled.
type StaticVerifier struct {
	Identity Identity
}

// Verify returns the fixed identity.
func (s StaticVerifier) Verify(_ context.Context, _ string) (Identity, error) {
	return s.Identity, nil
}

// #endregion static

// #region bearer

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// #endregion bearer
