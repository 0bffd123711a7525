// Package walletpass derives the display values shown on every wallet pass
// and holds the helpers shared by the Apple, Google and PWA builders.
package walletpass

import (
	"fmt"
	"math"
	"time"

	"rewardjar-service/internal/domain/card"
)

const (
	LabelStampsCollected = "Stamps Collected"
	LabelSessionsUsed    = "Sessions Used"
	LabelRemaining       = "Remaining"
)

// DeriveInput is the raw state fields are computed from.
type DeriveInput struct {
	Type       card.CardType
	Current    int
	Total      int
	CostMinor  int64
	ExpiryDate *time.Time
}

// Fields are ephemeral display values. They are recomputed on every build
// and never persisted.
type Fields struct {
	CardType        card.CardType `json:"cardType"`
	Current         int           `json:"current"`
	Total           int           `json:"total"`
	ProgressLabel   string        `json:"progressLabel"`
	RemainingLabel  string        `json:"remainingLabel"`
	PrimaryValue    string        `json:"primaryValue"`
	ProgressPercent int           `json:"progressPercent"`
	RemainingCount  int           `json:"remainingCount"`
	IsCompleted     bool          `json:"isCompleted"`
	IsExpired       bool          `json:"isExpired"`

	MembershipCost          *int64     `json:"membershipCost,omitempty"`
	MembershipTotalSessions *int       `json:"membershipTotalSessions,omitempty"`
	MembershipExpiryDate    *time.Time `json:"membershipExpiryDate,omitempty"`
}

// Derive computes Fields from in. It has no side effects; now is passed in so
// results are reproducible.
func Derive(in DeriveInput, now time.Time) Fields {
	f := Fields{
		CardType:       in.Type,
		Current:        in.Current,
		Total:          in.Total,
		PrimaryValue:   fmt.Sprintf("%d/%d", in.Current, in.Total),
		RemainingLabel: LabelRemaining,
		IsCompleted:    in.Current >= in.Total,
		IsExpired:      in.ExpiryDate != nil && in.ExpiryDate.Before(now),
	}

	if in.Total > 0 {
		f.ProgressPercent = int(math.Round(100 * float64(in.Current) / float64(in.Total)))
	}

	f.RemainingCount = in.Total - in.Current
	if f.RemainingCount < 0 {
		f.RemainingCount = 0
	}

	switch in.Type {
	case card.CardTypeMembership:
		f.ProgressLabel = LabelSessionsUsed
		cost := in.CostMinor
		total := in.Total
		f.MembershipCost = &cost
		f.MembershipTotalSessions = &total
		f.MembershipExpiryDate = in.ExpiryDate
	default:
		f.ProgressLabel = LabelStampsCollected
	}

	return f
}

// FromCard derives fields for a customer card using its joined template.
func FromCard(cc *card.CustomerCard, now time.Time) Fields {
	in := DeriveInput{
		Type:       cc.Template.Type,
		Current:    cc.Progress(),
		Total:      cc.Template.Total(),
		ExpiryDate: cc.ExpiryDate,
	}
	if cc.Template.Membership != nil {
		in.CostMinor = cc.Template.Membership.CostMinor
	}
	return Derive(in, now)
}
