package domain

import "time"

// Contribution is one committed journal entry for a target.
type Contribution struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Target    TargetID  `json:"-"`
	Principal Principal `json:"principal"`
	Amount    Amount    `json:"amount"`
	Total     Amount    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// TargetSummary is the aggregate state of a target read in one snapshot.
type TargetSummary struct {
	Target        TargetID
	TotalInvested Amount
	LastInvestor  *Principal
	FundingGoal   *Amount
	FullyFunded   bool
}

// ContributionEvent is published once a contribution has been committed.
type ContributionEvent struct {
	Contribution Contribution
	FundingGoal  *Amount
	FullyFunded  bool
	// JustFunded is set only on the contribution that crossed the goal.
	JustFunded bool
}
