// internal/service/wallet/service.go
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"
	"rewardjar-service/internal/pkg/walletpass/apple"
	"rewardjar-service/internal/pkg/walletpass/google"
	"rewardjar-service/internal/pkg/walletpass/pwa"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const pwaPassType = "pwa"

// Options carries the per-platform builders. A nil builder means the
// platform is disabled.
type Options struct {
	Apple  *apple.Builder
	Tokens *apple.AuthTokens
	Signer apple.Signer
	Google *google.Builder

	BaseURL         string
	MaxAttempts     int
	DefaultCurrency string
	DefaultLocale   string
}

type WalletService struct {
	passRepo   wallet.PassRepository
	deviceRepo wallet.DeviceRepository
	queueRepo  wallet.QueueRepository
	cardRepo   card.Repository
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

func NewWalletService(
	passRepo wallet.PassRepository,
	deviceRepo wallet.DeviceRepository,
	queueRepo wallet.QueueRepository,
	cardRepo card.Repository,
	opts Options,
	logger *zap.Logger,
) *WalletService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &WalletService{
		passRepo:   passRepo,
		deviceRepo: deviceRepo,
		queueRepo:  queueRepo,
		cardRepo:   cardRepo,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// PlatformStatus reports which platforms are configured.
func (s *WalletService) PlatformStatus() map[wallet.Platform]bool {
	return map[wallet.Platform]bool{
		wallet.PlatformApple:  s.opts.Apple != nil,
		wallet.PlatformGoogle: s.opts.Google != nil,
		wallet.PlatformPWA:    true,
	}
}

func (s *WalletService) AuthTokens() *apple.AuthTokens {
	return s.opts.Tokens
}

// IssuePass returns the pass of cc on platform, creating it on first use
func (s *WalletService) IssuePass(ctx context.Context, customerCardID string, platform wallet.Platform) (*wallet.IssuedPass, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q: %w", platform, xerrors.ErrInvalidInput)
	}
	if err := s.requirePlatform(platform); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(customerCardID); err != nil {
		return nil, fmt.Errorf("customer card id: %w", xerrors.ErrInvalidInput)
	}

	cc, err := s.loadCard(ctx, customerCardID)
	if err != nil {
		return nil, err
	}
	if cc.Status != card.CardStatusActive {
		return nil, xerrors.ErrInactive
	}

	pass, err := s.passRepo.FindByCardAndPlatform(ctx, cc.ID, platform)
	if errors.Is(err, xerrors.ErrNotFound) {
		pass, err = s.createPass(ctx, cc, platform)
	}
	if err != nil {
		return nil, err
	}

	return s.describe(cc, pass)
}

func (s *WalletService) createPass(ctx context.Context, cc *card.CustomerCard, platform wallet.Platform) (*wallet.Pass, error) {
	pass := &wallet.Pass{
		ID:             uuid.NewString(),
		CustomerCardID: cc.ID,
		Platform:       platform,
		UpdateTag:      1,
	}

	switch platform {
	case wallet.PlatformApple:
		pass.PassTypeID = s.opts.Apple.PassTypeIdentifier()
		pass.SerialNumber = ulid.Make().String()
	case wallet.PlatformGoogle:
		ids := s.opts.Google.BuildIDs(cc.ID, "", cc.Template.IsMembership())
		pass.PassTypeID = ids.ClassID
		pass.SerialNumber = ids.ObjectID
	case wallet.PlatformPWA:
		pass.PassTypeID = pwaPassType
		pass.SerialNumber = ulid.Make().String()
	}

	if err := s.passRepo.Create(ctx, pass); err != nil {
		if errors.Is(err, xerrors.ErrConflict) {
			// lost a race with a concurrent issue for the same card
			return s.passRepo.FindByCardAndPlatform(ctx, cc.ID, platform)
		}
		s.logger.Error("failed to create wallet pass", zap.String("card_id", cc.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create wallet pass: %w", err)
	}

	s.logger.Info("wallet pass issued",
		zap.String("pass_id", pass.ID),
		zap.String("card_id", cc.ID),
		zap.String("platform", string(platform)),
		zap.String("serial", pass.SerialNumber),
	)
	return pass, nil
}

func (s *WalletService) describe(cc *card.CustomerCard, pass *wallet.Pass) (*wallet.IssuedPass, error) {
	fields := walletpass.FromCard(cc, s.now())
	issued := &wallet.IssuedPass{Pass: pass}

	switch pass.Platform {
	case wallet.PlatformApple:
		doc, err := s.opts.Apple.BuildPassJSON(cc, &cc.Business, pass.SerialNumber, fields)
		if err != nil {
			return nil, err
		}
		issued.Document = doc
	case wallet.PlatformGoogle:
		token, err := s.opts.Google.CreateSaveToWalletJWT(s.googleObject(cc, pass, fields), s.now())
		if err != nil {
			return nil, err
		}
		issued.SaveURL = google.BuildSaveURL(token)
	case wallet.PlatformPWA:
		issued.ManifestURL = fmt.Sprintf("%s/pwa/%s/manifest.json", s.opts.BaseURL, pass.SerialNumber)
		issued.AuthenticationToken = s.opts.Tokens.Token(pass.SerialNumber)
	}
	return issued, nil
}

// GoogleSaveURL issues the Google pass if needed and returns its save link.
func (s *WalletService) GoogleSaveURL(ctx context.Context, customerCardID string) (string, error) {
	issued, err := s.IssuePass(ctx, customerCardID, wallet.PlatformGoogle)
	if err != nil {
		return "", err
	}
	return issued.SaveURL, nil
}

// Enqueue records a change of pass: the update tag is bumped and a push job
// is queued in one step.
func (s *WalletService) Enqueue(ctx context.Context, passID string) (*wallet.QueueItem, error) {
	pass, err := s.passRepo.FindByID(ctx, passID)
	if err != nil {
		return nil, err
	}
	cc, err := s.loadCard(ctx, pass.CustomerCardID)
	if err != nil {
		return nil, err
	}
	return s.enqueue(ctx, cc, pass)
}

// EnqueueForCard queues an update for every wallet pass of a customer card.
func (s *WalletService) EnqueueForCard(ctx context.Context, customerCardID string) ([]wallet.QueueItem, error) {
	cc, err := s.loadCard(ctx, customerCardID)
	if err != nil {
		return nil, err
	}
	passes, err := s.passRepo.ListByCard(ctx, customerCardID)
	if err != nil {
		return nil, err
	}

	items := make([]wallet.QueueItem, 0, len(passes))
	for i := range passes {
		item, err := s.enqueue(ctx, cc, &passes[i])
		if err != nil {
			return items, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func (s *WalletService) enqueue(ctx context.Context, cc *card.CustomerCard, pass *wallet.Pass) (*wallet.QueueItem, error) {
	now := s.now()
	payload, err := json.Marshal(s.snapshot(cc, pass, walletpass.FromCard(cc, now)))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	item := &wallet.QueueItem{
		ID:          ulid.Make().String(),
		PassID:      pass.ID,
		Platform:    pass.Platform,
		Payload:     payload,
		Status:      wallet.QueueStatusPending,
		Attempt:     1,
		MaxAttempts: s.opts.MaxAttempts,
		ScheduledAt: now,
	}

	tag, err := s.queueRepo.EnqueueWithTagBump(ctx, item)
	if err != nil {
		s.logger.Error("failed to enqueue pass update", zap.String("pass_id", pass.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("pass update queued",
		zap.String("queue_id", item.ID),
		zap.String("pass_id", pass.ID),
		zap.String("platform", string(pass.Platform)),
		zap.Int64("update_tag", tag),
	)
	return item, nil
}

// PassState returns the live derived fields of the pass with serial.
func (s *WalletService) PassState(ctx context.Context, serial string) (*PassState, error) {
	pass, err := s.passRepo.FindBySerialNumber(ctx, serial)
	if err != nil {
		return nil, err
	}
	cc, err := s.loadCard(ctx, pass.CustomerCardID)
	if err != nil {
		return nil, err
	}
	return &PassState{
		Serial:    pass.SerialNumber,
		UpdateTag: pass.UpdateTag,
		Card:      cc,
		Fields:    walletpass.FromCard(cc, s.now()),
	}, nil
}

// PWAManifest builds the web app manifest of a PWA pass.
func (s *WalletService) PWAManifest(ctx context.Context, serial string) (*pwa.Manifest, error) {
	pass, err := s.passRepo.FindBySerialNumber(ctx, serial)
	if err != nil {
		return nil, err
	}
	if pass.Platform != wallet.PlatformPWA {
		return nil, fmt.Errorf("pwa pass %s: %w", serial, xerrors.ErrNotFound)
	}
	cc, err := s.loadCard(ctx, pass.CustomerCardID)
	if err != nil {
		return nil, err
	}
	m := pwa.ForCard(cc, pass.SerialNumber, s.opts.BaseURL)
	return &m, nil
}

func (s *WalletService) ListQueue(ctx context.Context, filters *wallet.QueueListFilters) (*wallet.QueueListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	items, total, err := s.queueRepo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}
	return &wallet.QueueListResponse{
		Items:      items,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *WalletService) requirePlatform(platform wallet.Platform) error {
	switch platform {
	case wallet.PlatformApple:
		if s.opts.Apple == nil {
			return fmt.Errorf("apple wallet: %w", xerrors.ErrNotConfigured)
		}
	case wallet.PlatformGoogle:
		if s.opts.Google == nil {
			return fmt.Errorf("google wallet: %w", xerrors.ErrNotConfigured)
		}
	}
	return nil
}

// loadCard reads a customer card and fills business defaults.
func (s *WalletService) loadCard(ctx context.Context, id string) (*card.CustomerCard, error) {
	cc, err := s.cardRepo.FindCustomerCard(ctx, id)
	if err != nil {
		return nil, err
	}
	if cc.Business.Currency == "" {
		cc.Business.Currency = s.opts.DefaultCurrency
	}
	if cc.Business.Locale == "" {
		cc.Business.Locale = s.opts.DefaultLocale
	}
	return cc, nil
}
