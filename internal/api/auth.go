package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ohmpatell/FindYourDoctor/internal/appointment"
)

const actorKey contextKey = "actor"

// Claims carries the actor: the subject is the actor id.
type Claims struct {
	Role appointment.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens issued for this service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for actor. Used by the simulator and tests; real
// tokens come from the identity service sharing the secret.
func (a *Authenticator) IssueToken(actor appointment.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token and returns the actor it names.
func (a *Authenticator) ParseToken(raw string) (appointment.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return appointment.Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return appointment.Actor{}, fmt.Errorf("invalid token subject: %w", err)
	}
	if !claims.Role.Valid() {
		return appointment.Actor{}, fmt.Errorf("invalid token role %q", claims.Role)
	}

	return appointment.Actor{ID: id, Role: claims.Role}, nil
}

// RequireActor rejects requests without a valid bearer token and stores the
// actor in the request context.
func (a *Authenticator) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "bearer token required")
			return
		}

		actor, err := a.ParseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

var errNoActor = errors.New("no authenticated actor")

func actorFrom(ctx context.Context) (appointment.Actor, error) {
	actor, ok := ctx.Value(actorKey).(appointment.Actor)
	if !ok {
		return appointment.Actor{}, errNoActor
	}
	return actor, nil
}
