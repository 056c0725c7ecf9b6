package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/xenking/gearmart/internal/domain/auth"
)

// APIKeyHeader is the request header carrying the raw API key.
const APIKeyHeader = "api_key"

type actorKey struct{}

// ActorFromContext returns the authenticated actor stored by RequireAPIKey,
// or the zero Actor when the request was not authenticated.
func ActorFromContext(ctx context.Context) auth.Actor {
	a, _ := ctx.Value(actorKey{}).(auth.Actor)
	return a
}

// Authenticator resolves API keys to actors via HMAC-SHA256 hashed lookups.
type Authenticator struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given API key repository
// and HMAC pepper.
func NewAuthenticator(apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// RequireAPIKey authenticates the request by hashing the api_key header,
// looking the hash up, and performing a constant-time comparison to prevent
// timing attacks. The resolved actor is stored in the request context.
func (a *Authenticator) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			unauthorized(w)
			return
		}

		mac := hmac.New(sha256.New, a.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		record, err := a.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			unauthorized(w)
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded: the stored hash could differ
		// from what we computed if the repository returns a stale row.
		stored, err := hex.DecodeString(record.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, record.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"message":"invalid or missing api key"}`))
}
