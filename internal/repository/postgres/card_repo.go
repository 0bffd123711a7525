// internal/repository/postgres/card_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rewardjar-service/internal/domain/card"
	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CardRepository struct {
	db *pgxpool.Pool
}

func NewCardRepository(db *pgxpool.Pool) *CardRepository {
	return &CardRepository{db: db}
}

const templateColumns = `
	t.id, t.business_id, t.type, t.name, COALESCE(t.color, ''), COALESCE(t.icon, ''),
	t.total_stamps, COALESCE(t.reward_description, ''), t.total_sessions, t.cost, t.expiry_days,
	b.id, b.name, b.currency, b.locale, COALESCE(b.logo_url, '')`

type templateRow struct {
	totalStamps   *int
	totalSessions *int
	cost          *int64
	expiryDays    *int
	reward        string
}

func (tr *templateRow) dest(t *card.Template, b *card.Business) []interface{} {
	return []interface{}{
		&t.ID, &t.BusinessID, &t.Type, &t.Name, &t.Color, &t.Icon,
		&tr.totalStamps, &tr.reward, &tr.totalSessions, &tr.cost, &tr.expiryDays,
		&b.ID, &b.Name, &b.Currency, &b.Locale, &b.LogoURL,
	}
}

// apply fills the variant matching the discriminant.
func (tr *templateRow) apply(t *card.Template) error {
	switch t.Type {
	case card.CardTypeStamp:
		if tr.totalStamps == nil {
			return fmt.Errorf("stamp template %s has no total_stamps", t.ID)
		}
		t.Stamp = &card.StampTerms{TotalStamps: *tr.totalStamps, RewardDescription: tr.reward}
	case card.CardTypeMembership:
		if tr.totalSessions == nil {
			return fmt.Errorf("membership template %s has no total_sessions", t.ID)
		}
		m := &card.MembershipTerms{TotalSessions: *tr.totalSessions, ExpiryDays: tr.expiryDays}
		if tr.cost != nil {
			m.CostMinor = *tr.cost
		}
		t.Membership = m
	default:
		return fmt.Errorf("template %s has unknown type %q", t.ID, t.Type)
	}
	return nil
}

// FindCustomerCard retrieves a customer card with its template and business
func (r *CardRepository) FindCustomerCard(ctx context.Context, id string) (*card.CustomerCard, error) {
	query := `
		SELECT cc.id, cc.customer_id, cc.customer_name, cc.template_id, cc.status,
		       cc.current_stamps, cc.sessions_used, cc.expiry_date, cc.created_at, cc.updated_at,
		       ` + templateColumns + `
		FROM customer_cards cc
		JOIN card_templates t ON t.id = cc.template_id
		JOIN businesses b ON b.id = t.business_id
		WHERE cc.id = $1
	`

	var cc card.CustomerCard
	var tr templateRow
	dest := []interface{}{
		&cc.ID, &cc.CustomerID, &cc.CustomerName, &cc.TemplateID, &cc.Status,
		&cc.CurrentStamps, &cc.SessionsUsed, &cc.ExpiryDate, &cc.CreatedAt, &cc.UpdatedAt,
	}
	dest = append(dest, tr.dest(&cc.Template, &cc.Business)...)

	err := r.db.QueryRow(ctx, query, id).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer card: %w", err)
	}

	if err := tr.apply(&cc.Template); err != nil {
		return nil, err
	}
	return &cc, nil
}

// FindTemplate retrieves a card template and its business
func (r *CardRepository) FindTemplate(ctx context.Context, id string) (*card.Template, *card.Business, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM card_templates t
		JOIN businesses b ON b.id = t.business_id
		WHERE t.id = $1
	`

	var t card.Template
	var b card.Business
	var tr templateRow

	err := r.db.QueryRow(ctx, query, id).Scan(tr.dest(&t, &b)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find card template: %w", err)
	}

	if err := tr.apply(&t); err != nil {
		return nil, nil, err
	}
	return &t, &b, nil
}

// CreateCustomerCard enrolls a customer
func (r *CardRepository) CreateCustomerCard(ctx context.Context, cc *card.CustomerCard) error {
	query := `
		INSERT INTO customer_cards (id, customer_id, customer_name, template_id, status, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING current_stamps, sessions_used, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		cc.ID, cc.CustomerID, cc.CustomerName, cc.TemplateID, cc.Status, cc.ExpiryDate,
	).Scan(&cc.CurrentStamps, &cc.SessionsUsed, &cc.CreatedAt, &cc.UpdatedAt)
	if isUniqueViolation(err) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create customer card: %w", err)
	}
	return nil
}

// IncrementProgress bumps stamps or sessions in one statement so concurrent
// scans cannot overshoot the limit.
func (r *CardRepository) IncrementProgress(ctx context.Context, id string, cardType card.CardType, delta, limit int) (int, error) {
	var column string
	switch cardType {
	case card.CardTypeStamp:
		column = "current_stamps"
	case card.CardTypeMembership:
		column = "sessions_used"
	default:
		return 0, fmt.Errorf("unknown card type %q: %w", cardType, xerrors.ErrInvalidInput)
	}

	query := fmt.Sprintf(`
		UPDATE customer_cards
		SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND %[1]s + $2 <= $3
		RETURNING %[1]s
	`, column)

	var value int
	err := r.db.QueryRow(ctx, query, id, delta, limit).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("card %s cannot take %d more: %w", id, delta, xerrors.ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update card progress: %w", err)
	}
	return value, nil
}
