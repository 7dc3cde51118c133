package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tokenart/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	cfg := TokenConfig{Secret: "s3cret", Issuer: "tokenart", TTL: time.Minute, Now: func() time.Time { return now }}

	token, err := SignToken(cfg, "GALICE")
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}
	p, err := VerifyToken(cfg, token)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if p != "GALICE" {
		t.Fatalf("VerifyToken() = %q, want GALICE", p)
	}
}

func TestVerifyTokenRejects(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	cfg := TokenConfig{Secret: "s3cret", Issuer: "tokenart", TTL: time.Minute, Now: func() time.Time { return now }}
	valid, err := SignToken(cfg, "GALICE")
	if err != nil {
		t.Fatalf("SignToken() error: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "tokenart", Subject: "GALICE",
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: "tokenart", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name  string
		cfg   TokenConfig
		token string
	}{
		{name: "empty", cfg: cfg, token: ""},
		{name: "garbage", cfg: cfg, token: "not.a.jwt"},
		{name: "wrong secret", cfg: TokenConfig{Secret: "other", Issuer: "tokenart", Now: cfg.Now}, token: valid},
		{name: "wrong issuer", cfg: TokenConfig{Secret: "s3cret", Issuer: "someone", Now: cfg.Now}, token: valid},
		{name: "expired", cfg: TokenConfig{Secret: "s3cret", Issuer: "tokenart", Now: func() time.Time { return now.Add(time.Hour) }}, token: valid},
		{name: "no expiry", cfg: cfg, token: noExpiry},
		{name: "no subject", cfg: cfg, token: noSubject},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyToken(tc.cfg, tc.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("VerifyToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifyWallet(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	_, otherPriv, _ := ed25519.GenerateKey(rand.Reader)
	now := time.Unix(1_700_000_000, 0)
	req := WalletRequest{
		Method:    "POST",
		Path:      "/v1/targets/art-1/contributions",
		Timestamp: strconv.FormatInt(now.Unix(), 10),
		Body:      []byte(`{"amount":5000}`),
	}
	keyHex := string(PrincipalOf(pub))
	sig := SignRequest(priv, req)

	p, err := VerifyWallet(keyHex, sig, req, now.Add(10*time.Second), time.Minute)
	if err != nil {
		t.Fatalf("VerifyWallet() error: %v", err)
	}
	if p != PrincipalOf(pub) {
		t.Fatalf("VerifyWallet() = %q, want %q", p, PrincipalOf(pub))
	}

	tampered := req
	tampered.Body = []byte(`{"amount":9000}`)
	otherPath := req
	otherPath.Path = "/v1/targets/art-2/contributions"

	tests := []struct {
		name string
		key  string
		sig  string
		req  WalletRequest
		now  time.Time
	}{
		{name: "tampered body", key: keyHex, sig: sig, req: tampered, now: now},
		{name: "other path", key: keyHex, sig: sig, req: otherPath, now: now},
		{name: "other signer", key: keyHex, sig: SignRequest(otherPriv, req), req: req, now: now},
		{name: "stale", key: keyHex, sig: sig, req: req, now: now.Add(2 * time.Minute)},
		{name: "future", key: keyHex, sig: sig, req: req, now: now.Add(-2 * time.Minute)},
		{name: "bad key", key: "zz", sig: sig, req: req, now: now},
		{name: "short signature", key: keyHex, sig: "abcd", req: req, now: now},
		{name: "bad timestamp", key: keyHex, sig: sig, req: WalletRequest{Method: req.Method, Path: req.Path, Timestamp: "yesterday", Body: req.Body}, now: now},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := VerifyWallet(tc.key, tc.sig, tc.req, tc.now, time.Minute); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("VerifyWallet() error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestOracles(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "GALICE")

	if err := (ContextOracle{}).RequireAuthorizedAs(ctx, "GALICE"); err != nil {
		t.Fatalf("ContextOracle same principal error: %v", err)
	}
	if err := (ContextOracle{}).RequireAuthorizedAs(ctx, "GBOB"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("ContextOracle other principal error = %v", err)
	}
	if err := (ContextOracle{}).RequireAuthorizedAs(context.Background(), "GALICE"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("ContextOracle anonymous error = %v", err)
	}
	if _, ok := PrincipalFromContext(WithPrincipal(context.Background(), "")); ok {
		t.Fatalf("empty principal stored in context")
	}

	static := StaticOracle{Principal: "GALICE"}
	if err := static.RequireAuthorizedAs(context.Background(), "GALICE"); err != nil {
		t.Fatalf("StaticOracle error: %v", err)
	}
	if err := static.RequireAuthorizedAs(context.Background(), "GBOB"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("StaticOracle other principal error = %v", err)
	}
	if err := (StaticOracle{}).RequireAuthorizedAs(context.Background(), ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("zero StaticOracle error = %v", err)
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.pem")

	priv, created, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() error: %v", err)
	}
	if !created {
		t.Fatalf("LoadOrCreateKey() did not report a new key")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	again, created, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() reload error: %v", err)
	}
	if created || !again.Equal(priv) {
		t.Fatalf("reloaded key differs (created=%v)", created)
	}

	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, _, err := LoadOrCreateKey(path); err == nil {
		t.Fatalf("LoadOrCreateKey() accepted a world-readable key")
	}
}

func TestLoadKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadKey(path); err == nil {
		t.Fatalf("LoadKey() accepted a non-PEM file")
	}
}

func TestReplayCache(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	cache := NewReplayCache(time.Minute)

	if !cache.Claim("sig-a", now) {
		t.Fatalf("first Claim() = false")
	}
	if cache.Claim("sig-a", now.Add(119*time.Second)) {
		t.Fatalf("Claim() within window accepted a replay")
	}
	if !cache.Claim("sig-b", now) {
		t.Fatalf("Claim() of a different signature = false")
	}
	if !cache.Claim("sig-a", now.Add(2*time.Minute)) {
		t.Fatalf("Claim() after expiry = false")
	}
}

func TestReplayCachePrunesExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	cache := NewReplayCache(time.Second)
	for i := 0; i < minReplayPrune-1; i++ {
		cache.Claim(strconv.Itoa(i), now)
	}
	cache.Claim("late", now.Add(time.Hour))
	if cache.Len() != 1 {
		t.Fatalf("Len() after prune = %d, want 1", cache.Len())
	}
}
