package apple

import (
	"encoding/json"
	"testing"
	"time"

	"rewardjar-service/internal/domain/card"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		PassTypeIdentifier: "pass.com.rewardjar.loyalty",
		TeamIdentifier:     "ABCDE12345",
		OrganizationName:   "RewardJar",
		WebServiceURL:      "https://wallet.example.com/wallet/apple",
	}
}

func stampCard() (*card.CustomerCard, *card.Business) {
	biz := &card.Business{ID: "biz_1", Name: "Bean There", Currency: "KRW", Locale: "ko-KR"}
	cc := &card.CustomerCard{
		ID:            "3f6c2a9e-1b7d-4c55-9a0e-2d8b7f1c4e10",
		CustomerName:  "Jiwoo Kim",
		CurrentStamps: 3,
		Template: card.Template{
			ID:    "tpl_1",
			Type:  card.CardTypeStamp,
			Name:  "Coffee Card",
			Color: "#8B4513",
			Stamp: &card.StampTerms{TotalStamps: 10, RewardDescription: "Free americano"},
		},
		Business: *biz,
	}
	return cc, biz
}

func membershipCard() (*card.CustomerCard, *card.Business) {
	biz := &card.Business{ID: "biz_2", Name: "Iron Gym", Currency: "KRW", Locale: "ko-KR"}
	expiry := now.AddDate(0, 3, 0)
	cc := &card.CustomerCard{
		ID:           "9b1f0c3d-7a2e-4f11-8c9d-5e6f7a8b9c0d",
		SessionsUsed: 5,
		ExpiryDate:   &expiry,
		Template: card.Template{
			ID:         "tpl_2",
			Type:       card.CardTypeMembership,
			Name:       "PT Package",
			Membership: &card.MembershipTerms{TotalSessions: 24, CostMinor: 150000},
		},
		Business: *biz,
	}
	return cc, biz
}

func TestBuildBarcode(t *testing.T) {
	block := BuildBarcode("1234", "Card ID")

	require.Len(t, block.Barcodes, 1)
	bc := block.Barcodes[0]
	assert.Equal(t, "1234", bc.Message)
	assert.Equal(t, "PKBarcodeFormatQR", bc.Format)
	assert.Equal(t, "iso-8859-1", bc.MessageEncoding)
	assert.Equal(t, "Card ID: 1234", bc.AltText)
}

func TestBuildStampPassMatchesGolden(t *testing.T) {
	cc, biz := stampCard()
	b := NewBuilder(testConfig(), nil)

	doc, err := b.BuildPassJSON(cc, biz, "01HZX3V8K5Q2W7R9T4M6N8P0AB", walletpass.FromCard(cc, now))
	require.NoError(t, err)

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "stamp_pass", data)
}

func TestBuildMembershipPass(t *testing.T) {
	cc, biz := membershipCard()
	b := NewBuilder(testConfig(), nil)

	doc, err := b.BuildPassJSON(cc, biz, "serial-1", walletpass.FromCard(cc, now))
	require.NoError(t, err)

	assert.Equal(t, 1, doc.FormatVersion)
	assert.Equal(t, "pass.com.rewardjar.loyalty", doc.PassTypeIdentifier)
	assert.Equal(t, "serial-1", doc.SerialNumber)

	require.Len(t, doc.StoreCard.HeaderFields, 1)
	assert.Equal(t, "Membership", doc.StoreCard.HeaderFields[0].Label)

	require.NotEmpty(t, doc.StoreCard.PrimaryFields)
	assert.Equal(t, "Sessions Used", doc.StoreCard.PrimaryFields[0].Label)
	assert.Equal(t, "5/24", doc.StoreCard.PrimaryFields[0].Value)

	require.NotEmpty(t, doc.StoreCard.SecondaryFields)
	assert.Equal(t, "Progress", doc.StoreCard.SecondaryFields[0].Label)
	assert.Equal(t, "21%", doc.StoreCard.SecondaryFields[0].Value)

	desc, ok := doc.FieldByKey("description")
	require.True(t, ok)
	assert.Contains(t, desc.Value, "24")

	cost, ok := doc.FieldByKey("cost")
	require.True(t, ok)
	assert.Contains(t, cost.Value, "₩")

	assert.NotEmpty(t, doc.ExpirationDate)
	assert.False(t, doc.Voided)
}

func TestBuildMembershipPassVoidedWhenExpired(t *testing.T) {
	cc, biz := membershipCard()
	past := now.Add(-24 * time.Hour)
	cc.ExpiryDate = &past

	doc, err := NewBuilder(testConfig(), nil).BuildPassJSON(cc, biz, "serial-1", walletpass.FromCard(cc, now))
	require.NoError(t, err)
	assert.True(t, doc.Voided)
}

func TestBuildPassWebServiceNeedsTokens(t *testing.T) {
	cc, biz := stampCard()
	fields := walletpass.FromCard(cc, now)

	doc, err := NewBuilder(testConfig(), nil).BuildPassJSON(cc, biz, "s1", fields)
	require.NoError(t, err)
	assert.Empty(t, doc.WebServiceURL)
	assert.Empty(t, doc.AuthenticationToken)

	tokens := NewAuthTokens("super-secret")
	doc, err = NewBuilder(testConfig(), tokens).BuildPassJSON(cc, biz, "s1", fields)
	require.NoError(t, err)
	assert.Equal(t, "https://wallet.example.com/wallet/apple", doc.WebServiceURL)
	assert.Equal(t, tokens.Token("s1"), doc.AuthenticationToken)
	assert.GreaterOrEqual(t, len(doc.AuthenticationToken), 16)
}

func TestBuildPassDefaultsColor(t *testing.T) {
	cc, biz := stampCard()
	cc.Template.Color = "chartreuse"

	doc, err := NewBuilder(testConfig(), nil).BuildPassJSON(cc, biz, "s1", walletpass.FromCard(cc, now))
	require.NoError(t, err)

	want, _ := walletpass.HexToRGB(walletpass.DefaultColor)
	assert.Equal(t, want, doc.BackgroundColor)
}

func TestBuildPassRejectsMissingData(t *testing.T) {
	b := NewBuilder(testConfig(), nil)

	tests := []struct {
		name   string
		mutate func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business)
	}{
		{"missing serial", func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business) { return "", biz }},
		{"missing business", func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business) { return "s1", nil }},
		{"missing card name", func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business) {
			cc.Template.Name = ""
			return "s1", biz
		}},
		{"missing business name", func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business) {
			biz.Name = ""
			return "s1", biz
		}},
		{"both variants", func(cc *card.CustomerCard, biz *card.Business) (string, *card.Business) {
			cc.Template.Membership = &card.MembershipTerms{TotalSessions: 4}
			return "s1", biz
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, biz := stampCard()
			serial, b2 := tt.mutate(cc, biz)
			_, err := b.BuildPassJSON(cc, b2, serial, walletpass.FromCard(cc, now))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncompleteData)
		})
	}
}

func TestBuildPassRequiresConfig(t *testing.T) {
	cc, biz := stampCard()
	_, err := NewBuilder(Config{}, nil).BuildPassJSON(cc, biz, "s1", walletpass.FromCard(cc, now))
	assert.ErrorIs(t, err, xerrors.ErrNotConfigured)
}

func TestAuthTokens(t *testing.T) {
	tokens := NewAuthTokens("secret")
	tok := tokens.Token("serial-a")

	assert.Equal(t, tok, tokens.Token("serial-a"))
	assert.NotEqual(t, tok, tokens.Token("serial-b"))
	assert.True(t, tokens.Verify("serial-a", tok))
	assert.False(t, tokens.Verify("serial-b", tok))
	assert.False(t, tokens.Verify("serial-a", ""))

	disabled := NewAuthTokens("")
	assert.False(t, disabled.Enabled())
	assert.Empty(t, disabled.Token("serial-a"))
	assert.False(t, disabled.Verify("serial-a", ""))
}
