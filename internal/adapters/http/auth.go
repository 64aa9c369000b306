package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/metrodocs/internal/core/domain"
)

type actorContextKey struct{}

type actorClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok && actor.ID != ""
}

// authenticate verifies an HS256 bearer token and returns the actor named by
// its sub and role claims.
func authenticate(token, secret string) (domain.Actor, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.Actor{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &actorClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Actor{}, err
	}
	if !parsed.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Actor{}, errors.New("subject claim required")
	}
	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return domain.Actor{}, fmt.Errorf("unknown role claim %q", claims.Role)
	}
	return domain.Actor{ID: claims.Subject, Role: role}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func authMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("bearer token required")))
				return
			}
			actor, err := authenticate(token, secret)
			if err != nil {
				writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "authenticate", err))
				return
			}
			setLogActor(r.Context(), actor.ID)
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// requireActor is used by handlers behind authMiddleware.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("no authenticated actor")))
		return domain.Actor{}, false
	}
	return actor, true
}
