package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/bits"

	"tokenart/internal/domain"
)

func totalKey(t domain.TargetID) domain.Key {
	return domain.Key{Space: domain.SpaceTotalContributed, Target: t}
}

func lastContributorKey(t domain.TargetID) domain.Key {
	return domain.Key{Space: domain.SpaceLastContributor, Target: t}
}

func goalKey(t domain.TargetID) domain.Key {
	return domain.Key{Space: domain.SpaceFundingGoal, Target: t}
}

func countKey(t domain.TargetID) domain.Key {
	return domain.Key{Space: domain.SpaceContributionCount, Target: t}
}

func contributionKey(t domain.TargetID, seq uint64) domain.Key {
	return domain.Key{Space: domain.SpaceContribution, Target: t, Seq: seq}
}

func encodeUint(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// readUint decodes an 8-byte big-endian counter; ok is false when absent.
func readUint(ctx context.Context, r domain.Reader, key domain.Key) (uint64, bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("decode %s for %s: want 8 bytes, got %d", key.Space, key.Target, len(raw))
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func readAmount(ctx context.Context, r domain.Reader, key domain.Key) (domain.Amount, bool, error) {
	v, ok, err := readUint(ctx, r, key)
	return domain.Amount(v), ok, err
}

func readPrincipal(ctx context.Context, r domain.Reader, key domain.Key) (domain.Principal, bool, error) {
	raw, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	return domain.Principal(raw), true, nil
}

func readContribution(ctx context.Context, r domain.Reader, target domain.TargetID, seq uint64) (domain.Contribution, error) {
	raw, ok, err := r.Get(ctx, contributionKey(target, seq))
	if err != nil {
		return domain.Contribution{}, err
	}
	if !ok {
		return domain.Contribution{}, fmt.Errorf("contribution %d for %s missing from journal", seq, target)
	}
	var c domain.Contribution
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Contribution{}, fmt.Errorf("decode contribution %d for %s: %w", seq, target, err)
	}
	c.Target = target
	return c, nil
}

// addAmount is the checked sum used for every running total.
func addAmount(a, b domain.Amount) (domain.Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", domain.ErrOverflow, a, b)
	}
	return domain.Amount(sum), nil
}

// funded never treats an unset goal as reachable.
func funded(total domain.Amount, goal domain.Amount, hasGoal bool) bool {
	return hasGoal && total >= goal
}
