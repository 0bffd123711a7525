// Package google builds Google Wallet loyalty objects and the signed
// "save to wallet" links for them.
package google

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SaveURLPrefix = "https://pay.google.com/gp/v/save/"

	StateActive   = "ACTIVE"
	StateExpired  = "EXPIRED"
	BarcodeTypeQR = "QR_CODE"

	saveJWTTTL = time.Hour
)

var (
	ErrInvalidPrivateKey = errors.New("google wallet: private key is not a valid PEM encoded RSA key")

	invalidIDChars = regexp.MustCompile(`[^A-Za-z0-9._]`)
)

type Config struct {
	IssuerID            string
	ServiceAccountEmail string
	PrivateKey          string
	StampClassSuffix    string
	MembershipClass     string
	// Origins restricts which sites may render the save button.
	Origins []string
}

type IDs struct {
	IssuerID string `json:"issuerId"`
	ClassID  string `json:"classId"`
	ObjectID string `json:"objectId"`
}

type LoyaltyObject struct {
	ID            string        `json:"id"`
	ClassID       string        `json:"classId"`
	State         string        `json:"state"`
	AccountID     string        `json:"accountId,omitempty"`
	AccountName   string        `json:"accountName,omitempty"`
	LoyaltyPoints LoyaltyPoints `json:"loyaltyPoints"`
	Barcode       Barcode       `json:"barcode"`
	TextModules   []TextModule  `json:"textModulesData,omitempty"`
	ValidTime     *TimeInterval `json:"validTimeInterval,omitempty"`
}

type LoyaltyPoints struct {
	Label   string         `json:"label"`
	Balance LoyaltyBalance `json:"balance"`
}

type LoyaltyBalance struct {
	String string `json:"string"`
}

type Barcode struct {
	Type          string `json:"type"`
	Value         string `json:"value"`
	AlternateText string `json:"alternateText,omitempty"`
}

type TextModule struct {
	ID     string `json:"id"`
	Header string `json:"header"`
	Body   string `json:"body"`
}

type TimeInterval struct {
	End DateTime `json:"end"`
}

type DateTime struct {
	Date string `json:"date"`
}

// ObjectInput is what a loyalty object is built from.
type ObjectInput struct {
	IDs             IDs
	Current         int
	Total           int
	ObjectDisplayID string
	Label           string
	AccountName     string
	Expired         bool
	ExpiresAt       *time.Time
	TextModules     []TextModule
}

type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// BuildIDs derives the class and object ids for a customer card. The result
// only depends on its inputs, so re-deriving ids for an existing pass always
// reproduces the ids Google keys the object by. An empty issuerID falls back
// to the configured issuer.
func (b *Builder) BuildIDs(customerCardID, issuerID string, isMembership bool) IDs {
	if issuerID == "" {
		issuerID = b.cfg.IssuerID
	}

	className := b.cfg.StampClassSuffix
	if className == "" {
		className = "stamp_card"
	}
	if isMembership {
		className = b.cfg.MembershipClass
		if className == "" {
			className = "membership_card"
		}
	}

	classID := fmt.Sprintf("%s.loyalty.%s", issuerID, className)
	return IDs{
		IssuerID: issuerID,
		ClassID:  classID,
		ObjectID: fmt.Sprintf("%s.%s", classID, SanitizeID(customerCardID)),
	}
}

// SanitizeID strips hyphens and replaces anything Google rejects in an id suffix.
func SanitizeID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	return invalidIDChars.ReplaceAllString(id, "_")
}

// CreateLoyaltyObject builds the object payload for in.
func (b *Builder) CreateLoyaltyObject(in ObjectInput) LoyaltyObject {
	state := StateActive
	if in.Expired {
		state = StateExpired
	}

	obj := LoyaltyObject{
		ID:          in.IDs.ObjectID,
		ClassID:     in.IDs.ClassID,
		State:       state,
		AccountID:   in.ObjectDisplayID,
		AccountName: in.AccountName,
		LoyaltyPoints: LoyaltyPoints{
			Label:   in.Label,
			Balance: LoyaltyBalance{String: fmt.Sprintf("%d/%d", in.Current, in.Total)},
		},
		Barcode: Barcode{
			Type:          BarcodeTypeQR,
			Value:         in.ObjectDisplayID,
			AlternateText: in.ObjectDisplayID,
		},
		TextModules: in.TextModules,
	}

	if in.ExpiresAt != nil {
		obj.ValidTime = &TimeInterval{End: DateTime{Date: in.ExpiresAt.UTC().Format(time.RFC3339)}}
	}
	return obj
}

// CreateSaveToWalletJWT signs a save link payload carrying object. It fails
// fast when the service account is not configured; errors never include the
// key itself.
func (b *Builder) CreateSaveToWalletJWT(object LoyaltyObject, now time.Time) (string, error) {
	if b.cfg.ServiceAccountEmail == "" || b.cfg.PrivateKey == "" {
		return "", fmt.Errorf("google wallet service account: %w", xerrors.ErrNotConfigured)
	}

	key, err := ParsePrivateKey(b.cfg.PrivateKey)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"iss": b.cfg.ServiceAccountEmail,
		"aud": "google",
		"typ": "savetowallet",
		"iat": now.Unix(),
		"exp": now.Add(saveJWTTTL).Unix(),
		"payload": map[string]interface{}{
			"loyaltyObjects": []LoyaltyObject{object},
		},
	}
	if len(b.cfg.Origins) > 0 {
		claims["origins"] = b.cfg.Origins
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("google wallet: failed to sign save jwt: %w", err)
	}
	return signed, nil
}

// BuildSaveURL returns the link that adds the signed object to Google Wallet.
func BuildSaveURL(token string) string {
	return SaveURLPrefix + token
}
