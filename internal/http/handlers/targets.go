package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tokenart/internal/auth"
	"tokenart/internal/domain"
)

const (
	maxBodyBytes        = 64 << 10
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type contributionRequest struct {
	Principal string      `json:"principal"`
	Amount    json.Number `json:"amount"`
}

type goalRequest struct {
	Goal json.Number `json:"goal"`
}

type contributionJSON struct {
	ID        string     `json:"id"`
	Seq       uint64     `json:"seq"`
	Principal string     `json:"principal"`
	Amount    amountJSON `json:"amount"`
	Total     amountJSON `json:"total_after"`
	CreatedAt string     `json:"created_at"`
}

type summaryJSON struct {
	Target        string      `json:"target"`
	TotalInvested amountJSON  `json:"total_invested"`
	LastInvestor  *string     `json:"last_investor"`
	FundingGoal   *amountJSON `json:"funding_goal"`
	FullyFunded   bool        `json:"fully_funded"`
}

func (a *App) contribution(c domain.Contribution) contributionJSON {
	return contributionJSON{
		ID:        c.ID,
		Seq:       c.Seq,
		Principal: string(c.Principal),
		Amount:    a.amount(c.Amount),
		Total:     a.amount(c.Total),
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func (a *App) summary(s domain.TargetSummary) summaryJSON {
	out := summaryJSON{
		Target:        s.Target.String(),
		TotalInvested: a.amount(s.TotalInvested),
		FullyFunded:   s.FullyFunded,
	}
	if s.LastInvestor != nil {
		p := string(*s.LastInvestor)
		out.LastInvestor = &p
	}
	if s.FundingGoal != nil {
		out.FundingGoal = a.optionalAmount(*s.FundingGoal, true)
	}
	return out
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

// parseStroops accepts a non-negative integer that fits an Amount.
func parseStroops(n json.Number) (domain.Amount, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, errors.New("amount is required")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.New("amount must be a whole number of stroops between 0 and 18446744073709551615")
	}
	return domain.Amount(v), nil
}

// RecordContribution handles POST /v1/targets/{target}/contributions. The
// principal defaults to the authenticated caller.
func (a *App) RecordContribution(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	var req contributionRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	amount, err := parseStroops(req.Amount)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	principal := domain.Principal(strings.TrimSpace(req.Principal))
	if principal == "" {
		caller, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			a.error(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		principal = caller
	}

	if err := a.Ledger.RecordContribution(r.Context(), target, principal, amount); err != nil {
		a.ledgerError(w, r, err)
		return
	}

	// The contribution is committed, so a failed read must not look like a
	// failed write to the client.
	sum, err := a.Ledger.Summary(r.Context(), target)
	if err != nil {
		a.Logger.Warn().Err(err).Str("target", target.String()).Msg("summary after contribution failed")
		a.json(w, http.StatusCreated, map[string]any{
			"target":    target.String(),
			"principal": string(principal),
			"amount":    a.amount(amount),
		})
		return
	}
	a.json(w, http.StatusCreated, a.summary(sum))
}

// Contributions handles GET /v1/targets/{target}/contributions?limit=N.
func (a *App) Contributions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	target := targetParam(r)
	items, err := a.Ledger.Contributions(r.Context(), target, limit)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	out := make([]contributionJSON, 0, len(items))
	for _, c := range items {
		out = append(out, a.contribution(c))
	}
	a.json(w, http.StatusOK, map[string]any{"target": target.String(), "items": out})
}

func (a *App) TotalInvested(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	total, err := a.Ledger.TotalInvested(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"target": target.String(), "total_invested": a.amount(total)})
}

func (a *App) LastInvestor(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	p, ok, err := a.Ledger.LastInvestor(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	var last *string
	if ok {
		s := string(p)
		last = &s
	}
	a.json(w, http.StatusOK, map[string]any{"target": target.String(), "last_investor": last})
}

// SetFundingGoal handles PUT /v1/targets/{target}/goal. A goal that already
// exists is kept; the response always carries the stored goal.
func (a *App) SetFundingGoal(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	goal, err := parseStroops(req.Goal)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := a.Ledger.SetFundingGoal(r.Context(), target, goal); err != nil {
		a.ledgerError(w, r, err)
		return
	}
	stored, ok, err := a.Ledger.FundingGoal(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"target":       target.String(),
		"funding_goal": a.optionalAmount(stored, ok),
		"applied":      ok && stored == goal,
	})
}

func (a *App) FundingGoal(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	goal, ok, err := a.Ledger.FundingGoal(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"target": target.String(), "funding_goal": a.optionalAmount(goal, ok)})
}

func (a *App) IsFullyFunded(w http.ResponseWriter, r *http.Request) {
	target := targetParam(r)
	funded, err := a.Ledger.IsFullyFunded(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"target": target.String(), "fully_funded": funded})
}

func (a *App) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.Ledger.Summary(r.Context(), targetParam(r))
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.summary(sum))
}
