package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
	"tokenart/internal/events"
	"tokenart/internal/ledger"
	"tokenart/internal/middleware"
)

// App holds the dependencies of the HTTP handlers.
type App struct {
	Ledger       *ledger.Service
	Hub          *events.Hub
	Logger       zerolog.Logger
	DisplayScale int32
	StoreDriver  string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// ledgerError maps a ledger error onto a response. Storage failures are
// logged and hidden behind a generic message.
func (a *App) ledgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		if _, ok := auth.PrincipalFromContext(r.Context()); ok {
			a.error(w, http.StatusForbidden, "forbidden", "caller is not authorized for this principal")
			return
		}
		a.error(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, domain.ErrOverflow):
		a.error(w, http.StatusConflict, "overflow", "contribution would overflow the target total")
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("ledger operation failed")
		a.error(w, http.StatusInternalServerError, "internal", "ledger operation failed")
	}
}

// targetParam decodes the {target} segment. Routes match on the escaped path
// (see middleware.EscapedRoutePath), so this is the only unescape.
func targetParam(r *http.Request) domain.TargetID {
	raw := chi.URLParam(r, "target")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return domain.ParseTargetID(raw)
}

type amountJSON struct {
	Stroops domain.Amount `json:"stroops"`
	Display string        `json:"display"`
}

func (a *App) amount(v domain.Amount) amountJSON {
	return amountJSON{Stroops: v, Display: v.Display(a.DisplayScale)}
}

func (a *App) optionalAmount(v domain.Amount, ok bool) *amountJSON {
	if !ok {
		return nil
	}
	out := a.amount(v)
	return &out
}
