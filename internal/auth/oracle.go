// Package auth resolves who is calling and answers whether the caller may act
// as a given principal.
package auth

import (
	"context"
	"fmt"

	"tokenart/internal/domain"
)

type principalKey struct{}

// WithPrincipal returns ctx carrying the authenticated caller p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok && p != ""
}

// ContextOracle authorizes the principal authenticated for the request.
type ContextOracle struct{}

func (ContextOracle) RequireAuthorizedAs(ctx context.Context, p domain.Principal) error {
	caller, ok := PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no authenticated caller", domain.ErrUnauthorized)
	}
	if caller != p {
		return fmt.Errorf("%w: caller %s cannot act as %s", domain.ErrUnauthorized, caller, p)
	}
	return nil
}

// StaticOracle authorizes exactly one principal regardless of context. The
// CLI uses it once the operator proved possession of the wallet key.
type StaticOracle struct {
	Principal domain.Principal
}

func (o StaticOracle) RequireAuthorizedAs(_ context.Context, p domain.Principal) error {
	if o.Principal == "" || o.Principal != p {
		return fmt.Errorf("%w: only %s is authorized", domain.ErrUnauthorized, o.Principal)
	}
	return nil
}

var (
	_ domain.Authorizer = ContextOracle{}
	_ domain.Authorizer = StaticOracle{}
)
