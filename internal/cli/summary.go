package cli

import (
	"tokenart/internal/domain"
	"tokenart/internal/ledger"
)

type ledgerReader = *ledger.Service

type amountDoc struct {
	Stroops uint64 `json:"stroops"`
	Display string `json:"display"`
}

type summaryDoc struct {
	Target        string     `json:"target"`
	TotalInvested amountDoc  `json:"total_invested"`
	LastInvestor  *string    `json:"last_investor"`
	FundingGoal   *amountDoc `json:"funding_goal"`
	FullyFunded   bool       `json:"fully_funded"`
}

func summaryDocument(e *Env, s domain.TargetSummary) summaryDoc {
	doc := summaryDoc{
		Target:        s.Target.String(),
		TotalInvested: amountDoc{Stroops: uint64(s.TotalInvested), Display: s.TotalInvested.Display(e.displayScale())},
		FullyFunded:   s.FullyFunded,
	}
	if s.LastInvestor != nil {
		p := string(*s.LastInvestor)
		doc.LastInvestor = &p
	}
	if s.FundingGoal != nil {
		doc.FundingGoal = &amountDoc{Stroops: uint64(*s.FundingGoal), Display: s.FundingGoal.Display(e.displayScale())}
	}
	return doc
}

func printSummary(e *Env, s domain.TargetSummary) {
	e.printf("target:         %s\n", s.Target)
	e.printf("total invested: %s\n", e.amount(s.TotalInvested))
	if s.LastInvestor != nil {
		e.printf("last investor:  %s\n", *s.LastInvestor)
	} else {
		e.printf("last investor:  none\n")
	}
	if s.FundingGoal != nil {
		e.printf("funding goal:   %s\n", e.amount(*s.FundingGoal))
	} else {
		e.printf("funding goal:   not set\n")
	}
	e.printf("fully funded:   %t\n", s.FullyFunded)
}
