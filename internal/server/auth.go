package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	json "github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"pagewright/internal/engine"
	"pagewright/internal/engine/auth"
	"pagewright/internal/repo"
)

type AuthConfig struct {
	JWTSecret              string
	AllowLegacyActorHeader bool
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ActorID string
	Role    auth.Role
	Source  string
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// actorFromContext returns the caller, or the anonymous actor when the
// request carried no credentials.
func actorFromContext(ctx context.Context) auth.Actor {
	p, ok := principalFromContext(ctx)
	if !ok {
		return auth.Actor{}
	}
	return auth.Actor{ID: p.ActorID, Role: p.Role}
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// SignToken mints an HS256 bearer token for actorID. An empty role makes the
// server look the role up in the actors table.
func SignToken(secret, actorID string, role auth.Role, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	if actorID == "" {
		return "", errors.New("actor id required")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "pagewright",
		},
		Role: string(role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateJWT(ctx context.Context, e engine.Engine, token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwtClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("subject claim required")
	}
	role, err := resolveRole(ctx, e, claims.Subject, claims.Role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ActorID: claims.Subject, Role: role, Source: "jwt"}, nil
}

func authenticateAPIKey(ctx context.Context, e engine.Engine, key string) (Principal, error) {
	if strings.TrimSpace(key) == "" {
		return Principal{}, errors.New("api key required")
	}
	apiKey, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return Principal{}, err
	}
	if apiKey.ActorID == "" {
		return Principal{}, errors.New("api key missing actor")
	}
	role, err := e.ResolveRole(ctx, apiKey.ActorID)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ActorID: apiKey.ActorID, Role: role, Source: "api_key"}, nil
}

// resolveRole prefers an explicit role and falls back to the stored one.
func resolveRole(ctx context.Context, e engine.Engine, actorID, explicit string) (auth.Role, error) {
	if strings.TrimSpace(explicit) != "" {
		return auth.ParseRole(explicit)
	}
	return e.ResolveRole(ctx, actorID)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches a Principal to requests under basePath that
// carry credentials. Requests without credentials continue as anonymous and
// the engine decides what they may do. Bad credentials are rejected.
func newAuthMiddleware(basePath string, cfg AuthConfig, e engine.Engine, logger *zap.Logger) func(http.Handler) http.Handler {
	invalid := func(w http.ResponseWriter) {
		respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "invalid credentials", nil))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}

			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			apiKeyHeader := strings.TrimSpace(req.Header.Get("X-Api-Key"))
			legacyActor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))

			var principal Principal
			var err error
			switch {
			case authz != "":
				token, ok := bearerToken(authz)
				if !ok {
					invalid(w)
					return
				}
				principal, err = authenticateJWT(req.Context(), e, token, cfg.JWTSecret)
			case apiKeyHeader != "":
				principal, err = authenticateAPIKey(req.Context(), e, apiKeyHeader)
			case legacyActor != "" && cfg.AllowLegacyActorHeader:
				logger.Warn("legacy X-Actor-Id header used without credentials; ignored when Authorization or X-Api-Key is present",
					zap.String("actor_id", legacyActor))
				var role auth.Role
				role, err = e.ResolveRole(req.Context(), legacyActor)
				principal = Principal{ActorID: legacyActor, Role: role, Source: "legacy_header"}
			default:
				next.ServeHTTP(w, req)
				return
			}
			if err != nil {
				logger.Debug("authentication failed", zap.Error(err))
				invalid(w)
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	data, _ := json.Marshal(err)
	_, _ = w.Write(data)
}
