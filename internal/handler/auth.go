package handler

import (
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashToken returns the bcrypt hash of an API token for the server config.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// tokenVerifier checks bearer tokens against a bcrypt hash. Tokens that
// verified once are remembered by digest so bcrypt runs once per token.
type tokenVerifier struct {
	hash []byte

	mu       sync.Mutex
	verified map[[sha256.Size]byte]struct{}
}

func newTokenVerifier(hash string) *tokenVerifier {
	if hash == "" {
		return nil
	}
	return &tokenVerifier{
		hash:     []byte(hash),
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

func (v *tokenVerifier) verify(token string) bool {
	if token == "" {
		return false
	}
	digest := sha256.Sum256([]byte(token))
	v.mu.Lock()
	_, ok := v.verified[digest]
	v.mu.Unlock()
	if ok {
		return true
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return false
	}
	v.mu.Lock()
	v.verified[digest] = struct{}{}
	v.mu.Unlock()
	return true
}

// requireToken rejects requests without a valid bearer token. It is a no-op
// when no token hash is configured.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !h.tokens.verify(strings.TrimSpace(token)) {
			slog.Warn("rejected API request", "path", r.URL.Path, "remote", r.RemoteAddr)
			h.writeError(w, r, errUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
