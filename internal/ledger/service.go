// Package ledger records contributions toward funding targets. It keeps, per
// target, the running total, the last contributor and a write-once funding
// goal on top of an injected durable store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tokenart/internal/domain"
)

// Service applies ledger operations. Every operation is a single store
// transaction: it either commits all of its writes or none.
type Service struct {
	store       domain.Store
	auth        domain.Authorizer
	goalSetters []domain.Principal
	events      domain.EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
	newID       func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithGoalSetters restricts SetFundingGoal to callers authorized as one of
// principals. With no principals goal setting is open to anyone.
func WithGoalSetters(principals ...domain.Principal) Option {
	return func(s *Service) {
		s.goalSetters = append([]domain.Principal(nil), principals...)
	}
}

// WithEvents publishes every committed contribution to p.
func WithEvents(p domain.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source used to stamp journal entries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service bound to store and auth.
func New(store domain.Store, auth domain.Authorizer, opts ...Option) *Service {
	s := &Service{
		store:  store,
		auth:   auth,
		logger: zerolog.Nop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordContribution adds amount to the total of target on behalf of
// principal and makes principal the last contributor. The caller must be
// authorized as principal; nothing is read or written otherwise.
func (s *Service) RecordContribution(ctx context.Context, target domain.TargetID, principal domain.Principal, amount domain.Amount) error {
	if err := s.authorize(ctx, principal); err != nil {
		s.logger.Warn().Err(err).
			Str("target", target.String()).
			Str("principal", string(principal)).
			Msg("contribution rejected")
		return err
	}

	var ev domain.ContributionEvent
	err := s.store.Update(ctx, func(tx domain.Txn) error {
		total, _, err := readAmount(ctx, tx, totalKey(target))
		if err != nil {
			return err
		}
		newTotal, err := addAmount(total, amount)
		if err != nil {
			return err
		}
		goal, hasGoal, err := readAmount(ctx, tx, goalKey(target))
		if err != nil {
			return err
		}
		count, _, err := readUint(ctx, tx, countKey(target))
		if err != nil {
			return err
		}

		entry := domain.Contribution{
			ID:        s.newID(),
			Seq:       count + 1,
			Target:    target,
			Principal: principal,
			Amount:    amount,
			Total:     newTotal,
			CreatedAt: s.now().UTC(),
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode contribution: %w", err)
		}

		if err := tx.Set(ctx, totalKey(target), encodeUint(uint64(newTotal))); err != nil {
			return err
		}
		if err := tx.Set(ctx, lastContributorKey(target), []byte(principal)); err != nil {
			return err
		}
		if err := tx.Set(ctx, contributionKey(target, entry.Seq), raw); err != nil {
			return err
		}
		if err := tx.Set(ctx, countKey(target), encodeUint(entry.Seq)); err != nil {
			return err
		}

		ev = domain.ContributionEvent{
			Contribution: entry,
			FullyFunded:  funded(newTotal, goal, hasGoal),
			JustFunded:   funded(newTotal, goal, hasGoal) && !funded(total, goal, hasGoal),
		}
		if hasGoal {
			ev.FundingGoal = &goal
		}
		return nil
	})
	if err != nil {
		event := s.logger.Error()
		if errors.Is(err, domain.ErrOverflow) {
			event = s.logger.Warn()
		}
		event.Err(err).
			Str("target", target.String()).
			Str("principal", string(principal)).
			Uint64("amount", uint64(amount)).
			Msg("contribution aborted")
		return fmt.Errorf("record contribution: %w", err)
	}

	s.logger.Info().
		Str("target", target.String()).
		Str("principal", string(principal)).
		Uint64("amount", uint64(amount)).
		Uint64("total", uint64(ev.Contribution.Total)).
		Bool("fully_funded", ev.FullyFunded).
		Msg("contribution recorded")
	if s.events != nil {
		s.events.Publish(ev)
	}
	return nil
}

// TotalInvested returns the running total for target, zero when nothing was
// ever contributed.
func (s *Service) TotalInvested(ctx context.Context, target domain.TargetID) (domain.Amount, error) {
	var total domain.Amount
	err := s.store.View(ctx, func(r domain.Reader) error {
		var err error
		total, _, err = readAmount(ctx, r, totalKey(target))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("total invested: %w", err)
	}
	return total, nil
}

// LastInvestor returns the principal of the most recent contribution; ok is
// false when target has none.
func (s *Service) LastInvestor(ctx context.Context, target domain.TargetID) (p domain.Principal, ok bool, err error) {
	err = s.store.View(ctx, func(r domain.Reader) error {
		p, ok, err = readPrincipal(ctx, r, lastContributorKey(target))
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("last investor: %w", err)
	}
	return p, ok, nil
}

// SetFundingGoal stores goal for target unless one already exists, in which
// case it does nothing and reports no error.
func (s *Service) SetFundingGoal(ctx context.Context, target domain.TargetID, goal domain.Amount) error {
	if err := s.authorizeGoalSetter(ctx); err != nil {
		s.logger.Warn().Err(err).Str("target", target.String()).Msg("funding goal rejected")
		return err
	}

	var stored bool
	err := s.store.Update(ctx, func(tx domain.Txn) error {
		var err error
		stored, err = tx.SetIfAbsent(ctx, goalKey(target), encodeUint(uint64(goal)))
		return err
	})
	if err != nil {
		return fmt.Errorf("set funding goal: %w", err)
	}

	if stored {
		s.logger.Info().Str("target", target.String()).Uint64("goal", uint64(goal)).Msg("funding goal set")
	} else {
		s.logger.Debug().Str("target", target.String()).Uint64("goal", uint64(goal)).Msg("funding goal already set")
	}
	return nil
}

// FundingGoal returns the goal of target; ok is false when none was set.
func (s *Service) FundingGoal(ctx context.Context, target domain.TargetID) (goal domain.Amount, ok bool, err error) {
	err = s.store.View(ctx, func(r domain.Reader) error {
		goal, ok, err = readAmount(ctx, r, goalKey(target))
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("funding goal: %w", err)
	}
	return goal, ok, nil
}

// IsFullyFunded reports whether target has a goal and its total reached it.
func (s *Service) IsFullyFunded(ctx context.Context, target domain.TargetID) (bool, error) {
	var out bool
	err := s.store.View(ctx, func(r domain.Reader) error {
		total, _, err := readAmount(ctx, r, totalKey(target))
		if err != nil {
			return err
		}
		goal, hasGoal, err := readAmount(ctx, r, goalKey(target))
		if err != nil {
			return err
		}
		out = funded(total, goal, hasGoal)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("is fully funded: %w", err)
	}
	return out, nil
}

// Summary reads the whole state of target from one snapshot.
func (s *Service) Summary(ctx context.Context, target domain.TargetID) (domain.TargetSummary, error) {
	sum := domain.TargetSummary{Target: target}
	err := s.store.View(ctx, func(r domain.Reader) error {
		total, _, err := readAmount(ctx, r, totalKey(target))
		if err != nil {
			return err
		}
		sum.TotalInvested = total

		last, ok, err := readPrincipal(ctx, r, lastContributorKey(target))
		if err != nil {
			return err
		}
		if ok {
			sum.LastInvestor = &last
		}

		goal, hasGoal, err := readAmount(ctx, r, goalKey(target))
		if err != nil {
			return err
		}
		if hasGoal {
			sum.FundingGoal = &goal
		}
		sum.FullyFunded = funded(total, goal, hasGoal)
		return nil
	})
	if err != nil {
		return domain.TargetSummary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

// Contributions returns up to limit journal entries of target, newest first.
// A limit of zero or less returns the whole journal.
func (s *Service) Contributions(ctx context.Context, target domain.TargetID, limit int) ([]domain.Contribution, error) {
	var items []domain.Contribution
	err := s.store.View(ctx, func(r domain.Reader) error {
		count, _, err := readUint(ctx, r, countKey(target))
		if err != nil {
			return err
		}
		n := count
		if limit > 0 && uint64(limit) < n {
			n = uint64(limit)
		}
		items = make([]domain.Contribution, 0, n)
		for seq := count; seq > count-n; seq-- {
			c, err := readContribution(ctx, r, target, seq)
			if err != nil {
				return err
			}
			items = append(items, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("contributions: %w", err)
	}
	return items, nil
}

func (s *Service) authorize(ctx context.Context, p domain.Principal) error {
	if s.auth == nil {
		return fmt.Errorf("%w: no authorizer configured", domain.ErrUnauthorized)
	}
	if err := s.auth.RequireAuthorizedAs(ctx, p); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return nil
}

func (s *Service) authorizeGoalSetter(ctx context.Context) error {
	if len(s.goalSetters) == 0 {
		return nil
	}
	for _, p := range s.goalSetters {
		if s.authorize(ctx, p) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: caller may not set funding goals", domain.ErrUnauthorized)
}
