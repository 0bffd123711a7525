package apple

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"rewardjar-service/internal/domain/card"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"
)

const (
	headerStamp      = "Stamp Card"
	headerMembership = "Membership"
	foreground       = "rgb(255, 255, 255)"
)

// ErrIncompleteData is returned when card or business data lacks a field the
// signed pass cannot do without.
var ErrIncompleteData = errors.New("apple pass: incomplete card data")

type Config struct {
	PassTypeIdentifier string
	TeamIdentifier     string
	OrganizationName   string
	WebServiceURL      string
}

type Builder struct {
	cfg    Config
	tokens *AuthTokens
}

// NewBuilder returns a builder. tokens may be nil when the web service is not
// exposed; the document then carries no webServiceURL.
func NewBuilder(cfg Config, tokens *AuthTokens) *Builder {
	return &Builder{cfg: cfg, tokens: tokens}
}

func (b *Builder) PassTypeIdentifier() string {
	return b.cfg.PassTypeIdentifier
}

// BuildPassJSON assembles the store-card document for cc. Missing required
// data is an error; cosmetic values such as the card colour fall back to
// defaults.
func (b *Builder) BuildPassJSON(cc *card.CustomerCard, biz *card.Business, serial string, fields walletpass.Fields) (*PassDocument, error) {
	if b.cfg.PassTypeIdentifier == "" || b.cfg.TeamIdentifier == "" {
		return nil, fmt.Errorf("apple pass: pass type and team identifiers: %w", xerrors.ErrNotConfigured)
	}
	if err := validateInput(cc, biz, serial); err != nil {
		return nil, err
	}

	tpl := &cc.Template
	organization := b.cfg.OrganizationName
	if organization == "" {
		organization = biz.Name
	}

	background, _ := walletpass.HexToRGB(walletpass.NormalizeHexColor(tpl.Color))

	doc := &PassDocument{
		FormatVersion:      FormatVersion,
		PassTypeIdentifier: b.cfg.PassTypeIdentifier,
		SerialNumber:       serial,
		TeamIdentifier:     b.cfg.TeamIdentifier,
		OrganizationName:   organization,
		Description:        fmt.Sprintf("%s - %s", biz.Name, tpl.Name),
		LogoText:           biz.Name,
		ForegroundColor:    foreground,
		BackgroundColor:    background,
		LabelColor:         foreground,
		Barcodes:           BuildBarcode(cc.ID, "Card ID").Barcodes,
	}

	if b.cfg.WebServiceURL != "" && b.tokens.Enabled() {
		doc.WebServiceURL = b.cfg.WebServiceURL
		doc.AuthenticationToken = b.tokens.Token(serial)
	}

	doc.StoreCard = StoreCard{
		HeaderFields: []Field{{
			Key:   "card_type",
			Label: headerLabel(tpl.Type),
			Value: tpl.Name,
		}},
		PrimaryFields: []Field{{
			Key:           "progress",
			Label:         fields.ProgressLabel,
			Value:         fields.PrimaryValue,
			ChangeMessage: fields.ProgressLabel + ": %@",
		}},
		SecondaryFields: []Field{
			{Key: "percent", Label: "Progress", Value: fmt.Sprintf("%d%%", fields.ProgressPercent)},
			{Key: "remaining", Label: fields.RemainingLabel, Value: strconv.Itoa(fields.RemainingCount), TextAlignment: "PKTextAlignmentRight"},
		},
		AuxiliaryFields: auxiliaryFields(tpl, biz, fields),
		BackFields:      backFields(cc, biz, fields),
	}

	if tpl.Type == card.CardTypeMembership && cc.ExpiryDate != nil {
		doc.ExpirationDate = cc.ExpiryDate.UTC().Format(time.RFC3339)
		doc.Voided = fields.IsExpired
	}

	return doc, nil
}

func validateInput(cc *card.CustomerCard, biz *card.Business, serial string) error {
	switch {
	case cc == nil:
		return fmt.Errorf("%w: card is required", ErrIncompleteData)
	case biz == nil:
		return fmt.Errorf("%w: business is required", ErrIncompleteData)
	case serial == "":
		return fmt.Errorf("%w: serial number is required", ErrIncompleteData)
	case cc.ID == "":
		return fmt.Errorf("%w: card id is required", ErrIncompleteData)
	case cc.Template.Name == "":
		return fmt.Errorf("%w: card name is required", ErrIncompleteData)
	case biz.Name == "":
		return fmt.Errorf("%w: business name is required", ErrIncompleteData)
	}
	if err := cc.Template.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIncompleteData, err)
	}
	return nil
}

func headerLabel(t card.CardType) string {
	switch t {
	case card.CardTypeMembership:
		return headerMembership
	default:
		return headerStamp
	}
}

func auxiliaryFields(tpl *card.Template, biz *card.Business, fields walletpass.Fields) []Field {
	switch tpl.Type {
	case card.CardTypeMembership:
		out := []Field{{Key: "cost", Label: "Cost", Value: formatCost(tpl.Membership.CostMinor, biz)}}
		if fields.MembershipExpiryDate != nil {
			out = append(out, Field{
				Key:   "expires",
				Label: "Expires",
				Value: fields.MembershipExpiryDate.UTC().Format("2006-01-02"),
			})
		}
		return out
	default:
		if tpl.Stamp.RewardDescription == "" {
			return []Field{}
		}
		return []Field{{Key: "reward", Label: "Reward", Value: tpl.Stamp.RewardDescription}}
	}
}

func backFields(cc *card.CustomerCard, biz *card.Business, fields walletpass.Fields) []Field {
	var description string
	switch cc.Template.Type {
	case card.CardTypeMembership:
		description = fmt.Sprintf("Membership with %d sessions. %d used, %d remaining.",
			cc.Template.Membership.TotalSessions, fields.Current, fields.RemainingCount)
	default:
		description = fmt.Sprintf("Collect %d stamps to earn: %s",
			cc.Template.Stamp.TotalStamps, cc.Template.Stamp.RewardDescription)
	}

	out := []Field{
		{Key: "description", Label: "About this card", Value: description},
		{Key: "business", Label: "Issued by", Value: biz.Name},
	}
	if cc.CustomerName != "" {
		out = append(out, Field{Key: "member", Label: "Member", Value: cc.CustomerName})
	}
	return out
}

// formatCost falls back to a plain "<amount> <code>" when the business has an
// unknown currency; the cost field is informational.
func formatCost(minor int64, biz *card.Business) string {
	s, err := walletpass.FormatMoney(minor, biz.Currency, biz.Locale)
	if err != nil {
		return fmt.Sprintf("%d %s", minor, biz.Currency)
	}
	return s
}
