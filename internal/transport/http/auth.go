package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"live-session-engine/internal/domain"
)

// Claims is the bearer token payload. Role is "instructor", "teacher" or "student".
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator resolves the caller of a request. With a secret it trusts HS256 bearer
// tokens; without one it trusts the X-User-ID and X-User-Role headers.
type Authenticator struct {
	hmac []byte
}

func NewAuthenticator(secret string) *Authenticator {
	if secret == "" {
		return &Authenticator{}
	}
	return &Authenticator{hmac: []byte(secret)}
}

// IssueToken signs a token for the given identity.
func (a *Authenticator) IssueToken(sub string, role domain.Role, ttl time.Duration) (string, error) {
	if a.hmac == nil {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "live-session-engine",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.hmac)
}

func (a *Authenticator) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Middleware attaches the caller to the request context. Requests without credentials run
// as anonymous; a bad bearer token is rejected.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := domain.Caller{Role: domain.RoleAnonymous}
			if a.hmac != nil {
				if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
					claims, err := a.parse(strings.TrimPrefix(h, "Bearer "))
					if err != nil {
						onError(w, r, &AppError{Code: ErrCodeUnauthorized, Message: "invalid bearer token", Status: http.StatusUnauthorized, Err: err})
						return
					}
					caller = domain.Caller{ID: claims.Sub, Role: parseRole(claims.Role)}
				}
			} else if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
				caller = domain.Caller{ID: id, Role: parseRole(r.Header.Get("X-User-Role"))}
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
		})
	}
}

func parseRole(raw string) domain.Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "instructor", "teacher":
		return domain.RoleInstructor
	case "student":
		return domain.RoleStudent
	default:
		return domain.RoleAnonymous
	}
}

type callerKey struct{}

func withCaller(ctx context.Context, c domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFrom(ctx context.Context) domain.Caller {
	if c, ok := ctx.Value(callerKey{}).(domain.Caller); ok {
		return c
	}
	return domain.Caller{Role: domain.RoleAnonymous}
}
