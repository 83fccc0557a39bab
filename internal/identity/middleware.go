package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/syntrixbase/docflow/internal/ctxkeys"
	"github.com/syntrixbase/docflow/internal/request"
)

// Authenticator resolves the acting user of HTTP and websocket requests.
type Authenticator struct {
	tokens         *TokenService
	allowAnonymous bool
}

// NewAuthenticator creates an authenticator. A nil token service accepts
// anonymous callers only.
func NewAuthenticator(tokens *TokenService, allowAnonymous bool) *Authenticator {
	return &Authenticator{tokens: tokens, allowAnonymous: allowAnonymous}
}

// Authenticate returns the user of r. The token is read from the
// Authorization header, or from the "token" query parameter since browsers
// cannot set headers on websocket handshakes.
func (a *Authenticator) Authenticate(r *http.Request) (*request.User, *Claims, error) {
	token, err := bearerToken(r)
	if err != nil {
		return nil, nil, err
	}
	if token == "" {
		if !a.allowAnonymous {
			return nil, nil, ErrInvalidToken
		}
		return request.Anonymous(), nil, nil
	}
	if a.tokens == nil {
		return nil, nil, ErrInvalidToken
	}
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return nil, nil, err
	}
	return claims.User(), claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return r.URL.Query().Get("token"), nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// Middleware attaches the user to the request context and rejects
// requests with invalid tokens.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, claims, err := a.Authenticate(r)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := WithUser(r.Context(), user)
		if claims != nil {
			ctx = context.WithValue(ctx, ctxkeys.KeyClaims, claims)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithUser stores the acting user in ctx.
func WithUser(ctx context.Context, user *request.User) context.Context {
	return context.WithValue(ctx, ctxkeys.KeyUser, user)
}

// UserFromContext returns the acting user, anonymous when none was attached.
func UserFromContext(ctx context.Context) *request.User {
	if user, ok := ctx.Value(ctxkeys.KeyUser).(*request.User); ok && user != nil {
		return user
	}
	return request.Anonymous()
}
