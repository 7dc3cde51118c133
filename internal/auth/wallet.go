package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tokenart/internal/domain"
)

// Headers carrying a wallet signature.
const (
	HeaderWalletKey       = "X-Wallet-Key"
	HeaderWalletTimestamp = "X-Wallet-Timestamp"
	HeaderWalletSignature = "X-Wallet-Signature"
)

// ErrInvalidSignature is returned for any wallet signature that fails verification.
var ErrInvalidSignature = errors.New("invalid wallet signature")

// WalletRequest is the signed part of an HTTP request.
type WalletRequest struct {
	Method    string
	Path      string
	Timestamp string
	Body      []byte
}

// SigningPayload returns the bytes a wallet signs for req.
func SigningPayload(req WalletRequest) []byte {
	var b strings.Builder
	b.Grow(len(req.Method) + len(req.Path) + len(req.Timestamp) + len(req.Body) + 3)
	b.WriteString(strings.ToUpper(req.Method))
	b.WriteByte('\n')
	b.WriteString(req.Path)
	b.WriteByte('\n')
	b.WriteString(req.Timestamp)
	b.WriteByte('\n')
	b.Write(req.Body)
	return []byte(b.String())
}

// SignRequest signs req with priv and returns the hex signature.
func SignRequest(priv ed25519.PrivateKey, req WalletRequest) string {
	return hex.EncodeToString(ed25519.Sign(priv, SigningPayload(req)))
}

// PrincipalOf returns the principal identified by pub.
func PrincipalOf(pub ed25519.PublicKey) domain.Principal {
	return domain.Principal(hex.EncodeToString(pub))
}

// VerifyWallet checks that signature is a valid signature of req by keyHex
// and that req.Timestamp is within maxSkew of now. It returns the principal
// of the signing key.
func VerifyWallet(keyHex, signature string, req WalletRequest, now time.Time, maxSkew time.Duration) (domain.Principal, error) {
	pub, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("%w: malformed public key", ErrInvalidSignature)
	}
	sig, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(req.Timestamp), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
	}
	if skew := now.Sub(time.Unix(ts, 0)); skew > maxSkew || skew < -maxSkew {
		return "", fmt.Errorf("%w: timestamp outside allowed skew", ErrInvalidSignature)
	}
	if !ed25519.Verify(pub, SigningPayload(req), sig) {
		return "", ErrInvalidSignature
	}
	return PrincipalOf(pub), nil
}
