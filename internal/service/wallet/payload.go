// internal/service/wallet/payload.go
package wallet

import (
	"fmt"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/walletpass"
	"rewardjar-service/internal/pkg/walletpass/google"
)

const (
	googleLabelSessions = "Sessions"
	googleLabelPoints   = "Points"
)

// Snapshot is the payload stored on a queue item at enqueue time. The
// processor delivers from live state; the snapshot is kept for auditing.
type Snapshot struct {
	Serial        string                `json:"serial"`
	Fields        walletpass.Fields     `json:"fields"`
	LoyaltyObject *google.LoyaltyObject `json:"loyaltyObject,omitempty"`
}

// PassState is the live view of a pass sent to PWA clients.
type PassState struct {
	Serial    string             `json:"serial"`
	UpdateTag int64              `json:"updateTag"`
	Card      *card.CustomerCard `json:"card"`
	Fields    walletpass.Fields  `json:"fields"`
}

func (s *WalletService) snapshot(cc *card.CustomerCard, pass *wallet.Pass, fields walletpass.Fields) Snapshot {
	snap := Snapshot{Serial: pass.SerialNumber, Fields: fields}
	if pass.Platform == wallet.PlatformGoogle && s.opts.Google != nil {
		obj := s.googleObject(cc, pass, fields)
		snap.LoyaltyObject = &obj
	}
	return snap
}

// googleObject builds the loyalty object for a stored Google pass. The stored
// ids are used as is so a config change never re-keys an existing object.
func (s *WalletService) googleObject(cc *card.CustomerCard, pass *wallet.Pass, fields walletpass.Fields) google.LoyaltyObject {
	label := googleLabelPoints
	var modules []google.TextModule

	switch cc.Template.Type {
	case card.CardTypeMembership:
		label = googleLabelSessions
		if fields.MembershipCost != nil {
			if cost, err := walletpass.FormatMoney(*fields.MembershipCost, cc.Business.Currency, cc.Business.Locale); err == nil {
				modules = append(modules, google.TextModule{ID: "cost", Header: "Membership", Body: cost})
			}
		}
	case card.CardTypeStamp:
		if cc.Template.Stamp != nil && cc.Template.Stamp.RewardDescription != "" {
			modules = append(modules, google.TextModule{
				ID:     "reward",
				Header: "Reward",
				Body:   cc.Template.Stamp.RewardDescription,
			})
		}
	}
	modules = append(modules, google.TextModule{
		ID:     "remaining",
		Header: fields.RemainingLabel,
		Body:   fmt.Sprintf("%d", fields.RemainingCount),
	})

	ids := google.IDs{ClassID: pass.PassTypeID, ObjectID: pass.SerialNumber}
	return s.opts.Google.CreateLoyaltyObject(google.ObjectInput{
		IDs:             ids,
		Current:         fields.Current,
		Total:           fields.Total,
		ObjectDisplayID: cc.ID,
		Label:           label,
		AccountName:     cc.CustomerName,
		Expired:         fields.IsExpired,
		ExpiresAt:       cc.ExpiryDate,
		TextModules:     modules,
	})
}
