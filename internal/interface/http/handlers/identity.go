package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// Tokens are issued by the marketplace's account service. This service only
// verifies them and places the caller's identity in the request context.
// ══════════════════════════════════════════════════════════════════════════════

// Identity is the authenticated caller.
type Identity struct {
	// UserID - the token subject.
	UserID string

	// Role - optional role claim (student, instructor, admin).
	Role string
}

// UserIDHeader is trusted instead of a token when verification is disabled.
const UserIDHeader = "X-User-ID"

type identityKey struct{}

// WithIdentity stores the identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by the Authenticator.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// TOKEN VERIFIER
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenVerifier verifies HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier creates a verifier. An empty issuer accepts any issuer.
func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the identity it carries.
func (v *TokenVerifier) Verify(tokenString string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Identity{}, fmt.Errorf("%w: subject claim missing", ErrInvalidToken)
	}
	if _, err := shared.NewStudentID(subject); err != nil {
		return Identity{}, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}

	id := Identity{UserID: subject}
	if role, ok := claims["role"].(string); ok {
		id.Role = role
	}
	return id, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATOR MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator resolves the caller's identity for protected routes.
type Authenticator struct {
	verifier *TokenVerifier

	// trustHeader - development mode, X-User-ID is taken at face value.
	trustHeader bool

	// onFailure writes the 401 response.
	onFailure func(w http.ResponseWriter, r *http.Request, err error)
}

// NewAuthenticator creates an authenticator. When verifier is nil the
// X-User-ID header is trusted, which is only meant for local development.
func NewAuthenticator(verifier *TokenVerifier, onFailure func(w http.ResponseWriter, r *http.Request, err error)) *Authenticator {
	if onFailure == nil {
		onFailure = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return &Authenticator{
		verifier:    verifier,
		trustHeader: verifier == nil,
		onFailure:   onFailure,
	}
}

// Middleware rejects requests without a valid identity.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolve(r)
		if err != nil {
			a.onFailure(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (Identity, error) {
	if a.trustHeader {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			return Identity{}, fmt.Errorf("%w: %s header required", ErrMissingToken, UserIDHeader)
		}
		return Identity{UserID: userID}, nil
	}

	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, ErrMissingToken
	}
	return a.verifier.Verify(parts[1])
}
