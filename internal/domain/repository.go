package domain

import "context"

// Space names one of the logical maps kept per target.
type Space string

const (
	SpaceTotalContributed  Space = "total_contributed"
	SpaceLastContributor   Space = "last_contributor"
	SpaceFundingGoal       Space = "funding_goal"
	SpaceContributionCount Space = "contribution_count"
	SpaceContribution      Space = "contribution"
)

// Key addresses one value in the durable store. Seq is zero for the per-target
// singletons and the journal position for contributions.
type Key struct {
	Space  Space
	Target TargetID
	Seq    uint64
}

// Reader reads committed (or, inside Update, staged) values.
type Reader interface {
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)
}

// Txn is a read-write view valid for the duration of an Update callback.
type Txn interface {
	Reader
	Set(ctx context.Context, key Key, value []byte) error
	// SetIfAbsent stores value only when key has no value yet and reports
	// whether it did.
	SetIfAbsent(ctx context.Context, key Key, value []byte) (stored bool, err error)
}

// Store is the durable key-value map behind the ledger. Update commits every
// write of fn when fn returns nil and none of them otherwise.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Txn) error) error
	Close() error
}

// Authorizer proves that the current caller acts as a principal.
type Authorizer interface {
	RequireAuthorizedAs(ctx context.Context, p Principal) error
}

// EventPublisher receives committed contribution events.
type EventPublisher interface {
	Publish(ev ContributionEvent)
}
