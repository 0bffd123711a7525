// internal/domain/card/entity.go
package card

import (
	"fmt"
	"time"
)

type CardType string

const (
	CardTypeStamp      CardType = "stamp"
	CardTypeMembership CardType = "membership"
)

type CardStatus string

const (
	CardStatusActive    CardStatus = "active"
	CardStatusSuspended CardStatus = "suspended"
	CardStatusArchived  CardStatus = "archived"
)

// StampTerms holds the stamp-card specific part of a template.
type StampTerms struct {
	TotalStamps       int    `json:"total_stamps" db:"total_stamps"`
	RewardDescription string `json:"reward_description" db:"reward_description"`
}

// MembershipTerms holds the membership-card specific part of a template.
type MembershipTerms struct {
	TotalSessions int   `json:"total_sessions" db:"total_sessions"`
	CostMinor     int64 `json:"cost" db:"cost"`
	// ExpiryDays is the validity window applied at enrollment; nil means no expiry.
	ExpiryDays *int `json:"expiry_days,omitempty" db:"expiry_days"`
}

// Template is a business-owned card definition. Exactly one of Stamp or
// Membership is set and it must agree with Type.
type Template struct {
	ID         string   `json:"id" db:"id"`
	BusinessID string   `json:"business_id" db:"business_id"`
	Type       CardType `json:"type" db:"type"`
	Name       string   `json:"name" db:"name"`
	Color      string   `json:"color" db:"color"`
	Icon       string   `json:"icon" db:"icon"`

	Stamp      *StampTerms      `json:"stamp,omitempty"`
	Membership *MembershipTerms `json:"membership,omitempty"`
}

// Validate checks the discriminant against the populated variant.
func (t *Template) Validate() error {
	switch t.Type {
	case CardTypeStamp:
		if t.Stamp == nil || t.Membership != nil {
			return fmt.Errorf("stamp card %s must carry stamp terms only", t.ID)
		}
	case CardTypeMembership:
		if t.Membership == nil || t.Stamp != nil {
			return fmt.Errorf("membership card %s must carry membership terms only", t.ID)
		}
	default:
		return fmt.Errorf("card %s has unknown type %q", t.ID, t.Type)
	}
	return nil
}

// Total returns the number of stamps or sessions the template allows.
func (t *Template) Total() int {
	switch t.Type {
	case CardTypeStamp:
		if t.Stamp != nil {
			return t.Stamp.TotalStamps
		}
	case CardTypeMembership:
		if t.Membership != nil {
			return t.Membership.TotalSessions
		}
	}
	return 0
}

func (t *Template) IsMembership() bool {
	return t.Type == CardTypeMembership
}

type Business struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Currency string `json:"currency" db:"currency"`
	Locale   string `json:"locale" db:"locale"`
	LogoURL  string `json:"logo_url,omitempty" db:"logo_url"`
}

// CustomerCard binds one customer to one template and carries their progress.
type CustomerCard struct {
	ID           string     `json:"id" db:"id"`
	CustomerID   string     `json:"customer_id" db:"customer_id"`
	CustomerName string     `json:"customer_name" db:"customer_name"`
	TemplateID   string     `json:"template_id" db:"template_id"`
	Status       CardStatus `json:"status" db:"status"`

	CurrentStamps int        `json:"current_stamps" db:"current_stamps"`
	SessionsUsed  int        `json:"sessions_used" db:"sessions_used"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`

	Template Template `json:"template"`
	Business Business `json:"business"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Progress returns the current count for the card's type.
func (c *CustomerCard) Progress() int {
	switch c.Template.Type {
	case CardTypeStamp:
		return c.CurrentStamps
	case CardTypeMembership:
		return c.SessionsUsed
	}
	return 0
}
