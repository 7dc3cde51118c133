package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
)

const maxSignedBody = 1 << 20

// AuthConfig configures Authenticate.
type AuthConfig struct {
	Token         auth.TokenConfig
	WalletMaxSkew time.Duration
	Now           func() time.Time
	// Replay remembers accepted wallet signatures on mutating requests. A
	// cache sized by WalletMaxSkew is created when nil.
	Replay *auth.ReplayCache
}

// Authenticate resolves the caller from a bearer token or a wallet signature
// and stores it in the request context. Requests without credentials pass
// through anonymously; invalid credentials are rejected with 401.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	replay := cfg.Replay
	if replay == nil {
		replay = auth.NewReplayCache(cfg.WalletMaxSkew)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				principal domain.Principal
				err       error
			)
			switch {
			case r.Header.Get("Authorization") != "":
				principal, err = bearerPrincipal(cfg.Token, r.Header.Get("Authorization"))
			case r.Header.Get(auth.HeaderWalletKey) != "":
				principal, err = walletPrincipal(r, now(), cfg.WalletMaxSkew, replay)
			default:
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerPrincipal(cfg auth.TokenConfig, header string) (domain.Principal, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", auth.ErrInvalidToken
	}
	return auth.VerifyToken(cfg, parts[1])
}

func walletPrincipal(r *http.Request, now time.Time, maxSkew time.Duration, replay *auth.ReplayCache) (domain.Principal, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, maxSignedBody))
		if err != nil {
			return "", err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	req := auth.WalletRequest{
		Method:    r.Method,
		Path:      r.URL.Path,
		Timestamp: r.Header.Get(auth.HeaderWalletTimestamp),
		Body:      body,
	}
	sig := r.Header.Get(auth.HeaderWalletSignature)
	principal, err := auth.VerifyWallet(r.Header.Get(auth.HeaderWalletKey), sig, req, now, maxSkew)
	if err != nil {
		return "", err
	}
	if !isSafeMethod(r.Method) && !replay.Claim(strings.ToLower(strings.TrimSpace(sig)), now) {
		return "", fmt.Errorf("%w: signature already used", auth.ErrInvalidSignature)
	}
	return principal, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tokenart"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthenticated", "message": err.Error()},
	})
}
