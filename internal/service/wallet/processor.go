// internal/service/wallet/processor.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxErrorMessage = 1000

// Delivery is the live state a deliverer pushes for one pass.
type Delivery struct {
	Pass   *wallet.Pass
	Card   *card.CustomerCard
	Fields walletpass.Fields
}

// Deliverer pushes a pass update to one platform.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

type DelivererFunc func(ctx context.Context, d Delivery) error

func (f DelivererFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

type ProcessorConfig struct {
	BatchSize   int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	ClaimTTL    time.Duration
	CallTimeout time.Duration
	// Platforms limits which items this processor claims. Empty means all.
	Platforms []wallet.Platform
}

// Processor runs one bounded batch of the push queue per call. It keeps no
// state between calls, so any number of schedulers may invoke it.
type Processor struct {
	svc        *WalletService
	deliverers map[wallet.Platform]Deliverer
	cfg        ProcessorConfig
	logger     *zap.Logger
}

func NewProcessor(svc *WalletService, deliverers map[wallet.Platform]Deliverer, cfg ProcessorConfig, logger *zap.Logger) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = 5 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 15 * time.Second
	}
	return &Processor{svc: svc, deliverers: deliverers, cfg: cfg, logger: logger}
}

// ProcessBatch requeues stale claims, claims due items and delivers each one.
// A failing item never stops the others.
func (p *Processor) ProcessBatch(ctx context.Context) (*wallet.BatchResult, error) {
	started := p.svc.now()
	result := &wallet.BatchResult{}

	requeued, err := p.svc.queueRepo.RequeueStale(ctx, started.Add(-p.cfg.ClaimTTL))
	if err != nil {
		return nil, err
	}
	result.Requeued = requeued

	items, err := p.svc.queueRepo.Claim(ctx, started, p.cfg.BatchSize, p.cfg.Platforms)
	if err != nil {
		return nil, err
	}
	result.Claimed = len(items)

	// the newest item of a pass is delivered, older ones ride along
	latest := map[string]int{}
	for i, item := range items {
		latest[item.PassID] = i
	}
	followers := map[string][]wallet.QueueItem{}
	for i, item := range items {
		if latest[item.PassID] != i {
			followers[item.PassID] = append(followers[item.PassID], item)
		}
	}

	for i := range items {
		item := &items[i]
		if latest[item.PassID] != i {
			continue
		}

		deliverErr := p.deliver(ctx, item)
		p.finish(ctx, item, deliverErr, result)

		for _, f := range followers[item.PassID] {
			p.finishFollower(ctx, &f, item.ID, deliverErr, result)
		}
	}

	result.Duration = p.svc.now().Sub(started)
	p.logger.Info("wallet queue batch processed",
		zap.Int("claimed", result.Claimed),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("dead", result.Dead),
		zap.Int("retried", result.Retried),
		zap.Int("coalesced", result.Coalesced),
		zap.Int64("requeued", result.Requeued),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (p *Processor) deliver(ctx context.Context, item *wallet.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliverer panic: %v", r)
		}
	}()

	deliverer, ok := p.deliverers[item.Platform]
	if !ok || deliverer == nil {
		return fmt.Errorf("%s delivery: %w", item.Platform, xerrors.ErrNotConfigured)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	pass, err := p.svc.passRepo.FindByID(callCtx, item.PassID)
	if err != nil {
		return fmt.Errorf("load pass: %w", err)
	}
	cc, err := p.svc.loadCard(callCtx, pass.CustomerCardID)
	if err != nil {
		return fmt.Errorf("load card: %w", err)
	}

	return deliverer.Deliver(callCtx, Delivery{
		Pass:   pass,
		Card:   cc,
		Fields: walletpass.FromCard(cc, p.svc.now()),
	})
}

func (p *Processor) finish(ctx context.Context, item *wallet.QueueItem, deliverErr error, result *wallet.BatchResult) {
	now := p.svc.now()
	log := p.logger.With(
		zap.String("queue_id", item.ID),
		zap.String("pass_id", item.PassID),
		zap.String("platform", string(item.Platform)),
		zap.Int("attempt", item.Attempt),
	)

	if deliverErr == nil {
		if err := p.svc.queueRepo.Finish(ctx, item.ID, wallet.QueueStatusSuccess, nil, now, nil); err != nil {
			log.Error("failed to record delivery success", zap.Error(err))
			return
		}
		result.Succeeded++
		return
	}

	msg := truncateMessage(deliverErr.Error())
	if !retryable(deliverErr) || item.Attempt >= item.MaxAttempts {
		if err := p.svc.queueRepo.Finish(ctx, item.ID, wallet.QueueStatusDead, &msg, now, nil); err != nil {
			log.Error("failed to record dead item", zap.Error(err))
			return
		}
		result.Dead++
		log.Error("pass update gave up", zap.Error(deliverErr))
		return
	}

	parentID := item.ID
	retry := &wallet.QueueItem{
		ID:          ulid.Make().String(),
		PassID:      item.PassID,
		Platform:    item.Platform,
		Payload:     item.Payload,
		Status:      wallet.QueueStatusPending,
		Attempt:     item.Attempt + 1,
		MaxAttempts: item.MaxAttempts,
		ParentID:    &parentID,
		ScheduledAt: now.Add(p.Backoff(item.Attempt)),
	}
	if err := p.svc.queueRepo.Finish(ctx, item.ID, wallet.QueueStatusFailed, &msg, now, retry); err != nil {
		log.Error("failed to record delivery failure", zap.Error(err))
		return
	}
	result.Failed++
	result.Retried++
	log.Warn("pass update failed, retry scheduled",
		zap.String("retry_id", retry.ID),
		zap.Time("retry_at", retry.ScheduledAt),
		zap.Error(deliverErr))
}

// finishFollower closes an older item of a pass whose newest item was just
// delivered. Followers share the outcome but never spawn their own retry.
func (p *Processor) finishFollower(ctx context.Context, item *wallet.QueueItem, leaderID string, deliverErr error, result *wallet.BatchResult) {
	status := wallet.QueueStatusSuccess
	var msg *string
	if deliverErr != nil {
		status = wallet.QueueStatusFailed
		m := truncateMessage(fmt.Sprintf("coalesced into %s: %v", leaderID, deliverErr))
		msg = &m
	}

	if err := p.svc.queueRepo.Finish(ctx, item.ID, status, msg, p.svc.now(), nil); err != nil {
		p.logger.Error("failed to record coalesced item", zap.String("queue_id", item.ID), zap.Error(err))
		return
	}
	result.Coalesced++
}

// Backoff returns the delay before retrying after attempt:
// base * 2^(attempt-1), capped at the configured maximum.
func (p *Processor) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

// retryable is false for errors a later attempt cannot fix.
func retryable(err error) bool {
	switch {
	case errors.Is(err, xerrors.ErrNotConfigured), errors.Is(err, xerrors.ErrNotFound):
		return false
	}
	return true
}

func truncateMessage(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorMessage], "")
}
