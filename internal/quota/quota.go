// Package quota converts a count of valid referrals into the number of free
// claims a referrer has earned.
//
// Accrual is tiered: the first invite grants one claim, invites 2 through 11
// grant one claim per two invites, and every invite after that grants one
// claim per three. All functions are pure and never fail; degenerate input is
// clamped rather than rejected.
package quota

import "math"

const (
	firstBonusInvites = 1
	midBandEnd        = 11
	midBandRate       = 2
	tailBandRate      = 3
)

type Breakdown struct {
	Total            int `json:"total"`
	FirstBonus       int `json:"first_bonus"`
	TwoPerOneRange   int `json:"two_per_one_range"`
	ThreePerOneRange int `json:"three_per_one_range"`
}

// Status is everything a caller needs to gate a claim and render progress.
type Status struct {
	ValidInvites      int       `json:"valid_invites"`
	UsedClaims        int       `json:"used_claims"`
	MaxClaims         int       `json:"max_claims"`
	RemainingClaims   int       `json:"remaining_claims"`
	NextInvitesNeeded int       `json:"next_invites_needed"`
	Breakdown         Breakdown `json:"breakdown"`
}

func MaxClaims(validInvites int) int {
	return BreakdownOf(validInvites).Total
}

func BreakdownOf(validInvites int) Breakdown {
	if validInvites <= 0 {
		return Breakdown{}
	}

	first := 0
	if validInvites >= firstBonusInvites {
		first = 1
	}
	midInvites := max(min(validInvites, midBandEnd)-1, 0)
	tailInvites := max(validInvites-midBandEnd, 0)

	b := Breakdown{
		FirstBonus:       first,
		TwoPerOneRange:   midInvites / midBandRate,
		ThreePerOneRange: tailInvites / tailBandRate,
	}
	b.Total = b.FirstBonus + b.TwoPerOneRange + b.ThreePerOneRange
	return b
}

// Remaining never exceeds MaxClaims(validInvites) and is never negative.
func Remaining(validInvites, usedClaims int) int {
	return max(0, MaxClaims(validInvites)-max(0, usedClaims))
}

// NextInvitesNeeded reports how many more valid invites earn the next claim.
//
// The middle band is measured from invite #1 with an exclusive bound at 11,
// while the tail band is measured from an absolute offset of 11. Both agree at
// the boundary: 10 needs 1, 11 needs 3, 12 needs 2.
func NextInvitesNeeded(validInvites int) int {
	switch {
	case validInvites < 0:
		return 1
	case validInvites < firstBonusInvites:
		return firstBonusInvites - validInvites
	case validInvites < midBandEnd:
		if (validInvites-1)%midBandRate == 0 {
			return midBandRate
		}
		return 1
	default:
		rem := (validInvites - midBandEnd) % tailBandRate
		if rem == 0 {
			return tailBandRate
		}
		return tailBandRate - rem
	}
}

func Compute(validInvites, usedClaims int) Status {
	b := BreakdownOf(validInvites)
	return Status{
		ValidInvites:      max(validInvites, 0),
		UsedClaims:        max(usedClaims, 0),
		MaxClaims:         b.Total,
		RemainingClaims:   Remaining(validInvites, usedClaims),
		NextInvitesNeeded: NextInvitesNeeded(validInvites),
		Breakdown:         b,
	}
}

// FromFloat floors v into an int. ok is false for NaN and infinities.
func FromFloat(v float64) (n int, ok bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	f := math.Floor(v)
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt, true
	case f <= float64(math.MinInt):
		return math.MinInt, true
	}
	return int(f), true
}

// PreviewFloat is Compute for untrusted numeric input. A non-finite invite
// count earns nothing and needs one invite; a non-finite used count is zero.
func PreviewFloat(validInvites, usedClaims float64) Status {
	used, ok := FromFloat(usedClaims)
	if !ok {
		used = 0
	}
	invites, ok := FromFloat(validInvites)
	if !ok {
		invites = 0
	}
	return Compute(invites, used)
}
