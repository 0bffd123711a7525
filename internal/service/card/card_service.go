// internal/service/card/card_service.go
package card

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/cooldown"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	actionStamp   = "stamp"
	actionSession = "session"
)

// PassUpdater queues a wallet update for every pass of a card.
type PassUpdater interface {
	EnqueueForCard(ctx context.Context, customerCardID string) ([]wallet.QueueItem, error)
}

// CardState is a customer card with its derived fields and issued passes.
type CardState struct {
	Card   *card.CustomerCard `json:"card"`
	Fields walletpass.Fields  `json:"fields"`
	Passes []wallet.Pass      `json:"passes"`

	// QueuedUpdates is the number of wallet updates queued by the call.
	QueuedUpdates int `json:"queued_updates,omitempty"`
}

type CardService struct {
	cardRepo card.Repository
	passRepo wallet.PassRepository
	updater  PassUpdater
	guard    *cooldown.Guard
	logger   *zap.Logger
	now      func() time.Time
}

func NewCardService(
	cardRepo card.Repository,
	passRepo wallet.PassRepository,
	updater PassUpdater,
	guard *cooldown.Guard,
	logger *zap.Logger,
) *CardService {
	return &CardService{
		cardRepo: cardRepo,
		passRepo: passRepo,
		updater:  updater,
		guard:    guard,
		logger:   logger,
		now:      time.Now,
	}
}

// Enroll creates a customer card on a template. businessID scopes the call;
// an empty value means any business.
func (s *CardService) Enroll(ctx context.Context, businessID string, req *card.EnrollRequest) (*CardState, error) {
	if _, err := uuid.Parse(req.TemplateID); err != nil {
		return nil, fmt.Errorf("template id: %w", xerrors.ErrInvalidInput)
	}
	if _, err := uuid.Parse(req.CustomerID); err != nil {
		return nil, fmt.Errorf("customer id: %w", xerrors.ErrInvalidInput)
	}

	tpl, biz, err := s.cardRepo.FindTemplate(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if businessID != "" && tpl.BusinessID != businessID {
		return nil, xerrors.ErrForbidden
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, xerrors.ErrInvalidInput)
	}

	cc := &card.CustomerCard{
		ID:           uuid.NewString(),
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		TemplateID:   tpl.ID,
		Status:       card.CardStatusActive,
	}
	if tpl.Membership != nil && tpl.Membership.ExpiryDays != nil {
		expiry := s.now().AddDate(0, 0, *tpl.Membership.ExpiryDays)
		cc.ExpiryDate = &expiry
	}

	if err := s.cardRepo.CreateCustomerCard(ctx, cc); err != nil {
		s.logger.Error("failed to enroll customer", zap.String("template_id", tpl.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to enroll customer: %w", err)
	}
	cc.Template, cc.Business = *tpl, *biz

	s.logger.Info("customer enrolled",
		zap.String("card_id", cc.ID),
		zap.String("template_id", tpl.ID),
		zap.String("type", string(tpl.Type)),
	)

	return &CardState{
		Card:   cc,
		Fields: walletpass.FromCard(cc, s.now()),
		Passes: []wallet.Pass{},
	}, nil
}

// GetCardState returns the card, its derived fields and its wallet passes.
func (s *CardService) GetCardState(ctx context.Context, businessID, cardID string) (*CardState, error) {
	cc, err := s.loadCard(ctx, businessID, cardID)
	if err != nil {
		return nil, err
	}
	return s.state(ctx, cc)
}

// AddStamps adds up to count stamps. The count is clamped to what is left on
// the card; a full card is a conflict.
func (s *CardService) AddStamps(ctx context.Context, businessID, cardID string, count int) (*CardState, error) {
	if count <= 0 {
		count = 1
	}
	cc, err := s.loadCard(ctx, businessID, cardID)
	if err != nil {
		return nil, err
	}
	if cc.Template.Type != card.CardTypeStamp {
		return nil, fmt.Errorf("card %s is not a stamp card: %w", cc.ID, xerrors.ErrInvalidInput)
	}
	if err := s.checkUsable(cc); err != nil {
		return nil, err
	}

	total := cc.Template.Total()
	delta := count
	if remaining := total - cc.CurrentStamps; delta > remaining {
		delta = remaining
	}
	if delta <= 0 {
		return nil, fmt.Errorf("card %s already has all %d stamps: %w", cc.ID, total, xerrors.ErrConflict)
	}

	return s.applyProgress(ctx, cc, actionStamp, delta, total)
}

// UseSessions records count used sessions on a membership card.
func (s *CardService) UseSessions(ctx context.Context, businessID, cardID string, count int) (*CardState, error) {
	if count <= 0 {
		count = 1
	}
	cc, err := s.loadCard(ctx, businessID, cardID)
	if err != nil {
		return nil, err
	}
	if cc.Template.Type != card.CardTypeMembership {
		return nil, fmt.Errorf("card %s is not a membership card: %w", cc.ID, xerrors.ErrInvalidInput)
	}
	if err := s.checkUsable(cc); err != nil {
		return nil, err
	}
	if cc.ExpiryDate != nil && cc.ExpiryDate.Before(s.now()) {
		return nil, xerrors.ErrExpired
	}

	total := cc.Template.Total()
	if cc.SessionsUsed+count > total {
		return nil, fmt.Errorf("card %s has %d of %d sessions left: %w",
			cc.ID, total-cc.SessionsUsed, total, xerrors.ErrConflict)
	}

	return s.applyProgress(ctx, cc, actionSession, count, total)
}

func (s *CardService) applyProgress(ctx context.Context, cc *card.CustomerCard, action string, delta, limit int) (*CardState, error) {
	if !s.guard.Allow(ctx, action, cc.ID) {
		return nil, xerrors.ErrCooldown
	}

	value, err := s.cardRepo.IncrementProgress(ctx, cc.ID, cc.Template.Type, delta, limit)
	if err != nil {
		if !errors.Is(err, xerrors.ErrConflict) {
			// nothing was recorded, let the operator retry right away
			if rerr := s.guard.Reset(ctx, action, cc.ID); rerr != nil {
				s.logger.Warn("failed to reset cooldown", zap.String("card_id", cc.ID), zap.Error(rerr))
			}
		}
		return nil, err
	}

	switch cc.Template.Type {
	case card.CardTypeStamp:
		cc.CurrentStamps = value
	case card.CardTypeMembership:
		cc.SessionsUsed = value
	}
	cc.UpdatedAt = s.now()

	s.logger.Info("card progress updated",
		zap.String("card_id", cc.ID),
		zap.String("action", action),
		zap.Int("delta", delta),
		zap.Int("value", value),
		zap.Int("total", limit),
	)

	// progress is committed from here on, so nothing below fails the call
	items, err := s.updater.EnqueueForCard(ctx, cc.ID)
	if err != nil {
		// the passes catch up on the next change
		s.logger.Error("failed to queue wallet updates",
			zap.String("card_id", cc.ID),
			zap.Int("queued", len(items)),
			zap.Error(err))
	}

	state, err := s.state(ctx, cc)
	if err != nil {
		s.logger.Warn("failed to list passes for card state",
			zap.String("card_id", cc.ID),
			zap.Error(err))
		state = &CardState{Card: cc, Fields: walletpass.FromCard(cc, s.now()), Passes: []wallet.Pass{}}
	}
	state.QueuedUpdates = len(items)
	return state, nil
}

func (s *CardService) state(ctx context.Context, cc *card.CustomerCard) (*CardState, error) {
	passes, err := s.passRepo.ListByCard(ctx, cc.ID)
	if err != nil {
		return nil, err
	}
	if passes == nil {
		passes = []wallet.Pass{}
	}
	return &CardState{
		Card:   cc,
		Fields: walletpass.FromCard(cc, s.now()),
		Passes: passes,
	}, nil
}

func (s *CardService) loadCard(ctx context.Context, businessID, cardID string) (*card.CustomerCard, error) {
	if _, err := uuid.Parse(cardID); err != nil {
		return nil, fmt.Errorf("card id: %w", xerrors.ErrInvalidInput)
	}
	cc, err := s.cardRepo.FindCustomerCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if businessID != "" && cc.Template.BusinessID != businessID {
		return nil, xerrors.ErrForbidden
	}
	return cc, nil
}

func (s *CardService) checkUsable(cc *card.CustomerCard) error {
	if cc.Status != card.CardStatusActive {
		return xerrors.ErrInactive
	}
	return nil
}
