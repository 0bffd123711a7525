package memory

import (
	"context"
	"fmt"

	"rewardjar-service/internal/domain/card"
	xerrors "rewardjar-service/internal/pkg/errors"
)

type CardRepository struct {
	s *Store
}

var _ card.Repository = (*CardRepository)(nil)

func (r *CardRepository) FindCustomerCard(ctx context.Context, id string) (*card.CustomerCard, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	cc, ok := r.s.customerCards[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	tpl, ok := r.s.templates[cc.TemplateID]
	if !ok {
		return nil, fmt.Errorf("template %s of card %s: %w", cc.TemplateID, id, xerrors.ErrNotFound)
	}
	cc.Template = tpl
	cc.Business = r.s.businesses[tpl.BusinessID]
	return &cc, nil
}

func (r *CardRepository) FindTemplate(ctx context.Context, id string) (*card.Template, *card.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tpl, ok := r.s.templates[id]
	if !ok {
		return nil, nil, xerrors.ErrNotFound
	}
	biz := r.s.businesses[tpl.BusinessID]
	return &tpl, &biz, nil
}

func (r *CardRepository) CreateCustomerCard(ctx context.Context, cc *card.CustomerCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.customerCards[cc.ID]; exists {
		return xerrors.ErrConflict
	}
	now := r.s.Now()
	cc.CreatedAt, cc.UpdatedAt = now, now
	stored := *cc
	stored.Template, stored.Business = card.Template{}, card.Business{}
	r.s.customerCards[cc.ID] = stored
	return nil
}

func (r *CardRepository) IncrementProgress(ctx context.Context, id string, cardType card.CardType, delta, limit int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cc, ok := r.s.customerCards[id]
	if !ok || cc.Status != card.CardStatusActive {
		return 0, fmt.Errorf("card %s cannot take %d more: %w", id, delta, xerrors.ErrConflict)
	}

	var value *int
	switch cardType {
	case card.CardTypeStamp:
		value = &cc.CurrentStamps
	case card.CardTypeMembership:
		value = &cc.SessionsUsed
	default:
		return 0, fmt.Errorf("unknown card type %q: %w", cardType, xerrors.ErrInvalidInput)
	}
	if *value+delta > limit {
		return 0, fmt.Errorf("card %s cannot take %d more: %w", id, delta, xerrors.ErrConflict)
	}

	*value += delta
	cc.UpdatedAt = r.s.Now()
	r.s.customerCards[id] = cc
	return *value, nil
}
