package wallet

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass/apple"
	"rewardjar-service/internal/pkg/walletpass/google"
	"rewardjar-service/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testBusinessID = "b0000000-0000-4000-8000-000000000001"
	testTemplateID = "70000000-0000-4000-8000-000000000001"
	testCardID     = "c0000000-0000-4000-8000-000000000001"
	testPassType   = "pass.com.rewardjar.test"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc   *WalletService
	store *memory.Store
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}

	store := memory.New()
	store.Now = clk.Now
	store.PutBusiness(card.Business{ID: testBusinessID, Name: "Cafe Mori", Currency: "KRW", Locale: "ko-KR"})
	store.PutTemplate(card.Template{
		ID: testTemplateID, BusinessID: testBusinessID, Type: card.CardTypeStamp, Name: "Coffee Card", Color: "#8B4513",
		Stamp: &card.StampTerms{TotalStamps: 10, RewardDescription: "Free americano"},
	})
	store.PutCustomerCard(card.CustomerCard{
		ID: testCardID, CustomerID: "a0000000-0000-4000-8000-000000000001", CustomerName: "Kim", TemplateID: testTemplateID, CurrentStamps: 3,
	})

	tokens := apple.NewAuthTokens("test-secret")
	svc := NewWalletService(store.Passes(), store.Devices(), store.Queue(), store.Cards(), Options{
		Apple: apple.NewBuilder(apple.Config{
			PassTypeIdentifier: testPassType,
			TeamIdentifier:     "TEAM123456",
			OrganizationName:   "RewardJar",
			WebServiceURL:      "https://api.example.com/wallet/apple",
		}, tokens),
		Tokens:      tokens,
		Google:      google.NewBuilder(google.Config{IssuerID: "3388000000012345678"}),
		BaseURL:     "https://app.example.com",
		MaxAttempts: 3,
	}, zap.NewNop())
	svc.now = clk.Now

	return &fixture{svc: svc, store: store, clock: clk}
}

func (f *fixture) seedPass(t *testing.T, id string, platform wallet.Platform, serial string) wallet.Pass {
	t.Helper()
	p := wallet.Pass{
		ID:             id,
		CustomerCardID: testCardID,
		Platform:       platform,
		PassTypeID:     testPassType,
		SerialNumber:   serial,
		UpdateTag:      1,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	if platform == wallet.PlatformGoogle {
		ids := f.svc.opts.Google.BuildIDs(testCardID, "", false)
		p.PassTypeID, p.SerialNumber = ids.ClassID, ids.ObjectID
	}
	f.store.PutPass(p)
	return p
}

func TestIssueApplePassIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.IssuePass(ctx, testCardID, wallet.PlatformApple)
	require.NoError(t, err)
	assert.Equal(t, testPassType, first.Pass.PassTypeID)
	assert.Len(t, first.Pass.SerialNumber, 26)
	assert.NotNil(t, first.Document)

	second, err := f.svc.IssuePass(ctx, testCardID, wallet.PlatformApple)
	require.NoError(t, err)
	assert.Equal(t, first.Pass.ID, second.Pass.ID)
	assert.Equal(t, first.Pass.SerialNumber, second.Pass.SerialNumber)
}

func TestIssuePWAPassCarriesManifestAndToken(t *testing.T) {
	f := newFixture(t)

	issued, err := f.svc.IssuePass(context.Background(), testCardID, wallet.PlatformPWA)
	require.NoError(t, err)
	serial := issued.Pass.SerialNumber
	assert.Equal(t, "https://app.example.com/pwa/"+serial+"/manifest.json", issued.ManifestURL)
	assert.True(t, f.svc.AuthTokens().Verify(serial, issued.AuthenticationToken))
}

func TestIssuePassValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.IssuePass(ctx, testCardID, wallet.Platform("palm"))
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = f.svc.IssuePass(ctx, "42", wallet.PlatformApple)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = f.svc.IssuePass(ctx, "c0000000-0000-4000-8000-00000000ffff", wallet.PlatformApple)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	f.svc.opts.Apple = nil
	_, err = f.svc.IssuePass(ctx, testCardID, wallet.PlatformApple)
	assert.ErrorIs(t, err, xerrors.ErrNotConfigured)
	assert.False(t, f.svc.PlatformStatus()[wallet.PlatformApple])
}

func TestEnqueueBumpsTagPerCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")

	for i := 0; i < 3; i++ {
		item, err := f.svc.Enqueue(ctx, "p-apple")
		require.NoError(t, err)
		assert.Equal(t, wallet.QueueStatusPending, item.Status)
		assert.Equal(t, 1, item.Attempt)
		assert.Equal(t, 3, item.MaxAttempts)
	}

	pass, err := f.store.Passes().FindByID(ctx, "p-apple")
	require.NoError(t, err)
	assert.Equal(t, int64(4), pass.UpdateTag)
	assert.Len(t, f.store.QueueItems(), 3)
}

func TestEnqueueForCardCoversEveryPlatform(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	f.seedPass(t, "p-google", wallet.PlatformGoogle, "")
	f.seedPass(t, "p-pwa", wallet.PlatformPWA, "SERIAL-P")

	items, err := f.svc.EnqueueForCard(context.Background(), testCardID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	platforms := map[wallet.Platform]bool{}
	for _, item := range items {
		platforms[item.Platform] = true
		var snap Snapshot
		require.NoError(t, json.Unmarshal(item.Payload, &snap))
		assert.Equal(t, 3, snap.Fields.Current)
		if item.Platform == wallet.PlatformGoogle {
			require.NotNil(t, snap.LoyaltyObject)
		}
	}
	assert.Len(t, platforms, 3)
}

func TestEnqueueUnknownPass(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Enqueue(context.Background(), "missing")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.Empty(t, f.store.QueueItems())
}

func TestPassStateDerivesLiveFields(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-pwa", wallet.PlatformPWA, "SERIAL-P")

	state, err := f.svc.PassState(context.Background(), "SERIAL-P")
	require.NoError(t, err)
	assert.Equal(t, "SERIAL-P", state.Serial)
	assert.Equal(t, "3/10", state.Fields.PrimaryValue)
	assert.Equal(t, 7, state.Fields.RemainingCount)
}

func TestListQueuePaging(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	for i := 0; i < 5; i++ {
		_, err := f.svc.Enqueue(context.Background(), "p-apple")
		require.NoError(t, err)
	}

	res, err := f.svc.ListQueue(context.Background(), &wallet.QueueListFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Items, 2)

	res, err = f.svc.ListQueue(context.Background(), &wallet.QueueListFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
	assert.Len(t, res.Items, 5)
}
