// internal/repository/postgres/wallet_pass_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletPassRepository struct {
	db *pgxpool.Pool
}

func NewWalletPassRepository(db *pgxpool.Pool) *WalletPassRepository {
	return &WalletPassRepository{db: db}
}

const passColumns = `id, customer_card_id, platform, pass_type_id, serial_number, update_tag, created_at, updated_at`

func scanPass(row pgx.Row) (*wallet.Pass, error) {
	var p wallet.Pass
	err := row.Scan(&p.ID, &p.CustomerCardID, &p.Platform, &p.PassTypeID, &p.SerialNumber,
		&p.UpdateTag, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet pass: %w", err)
	}
	return &p, nil
}

// Create inserts a pass. A second pass for the same card and platform is a conflict.
func (r *WalletPassRepository) Create(ctx context.Context, p *wallet.Pass) error {
	query := `
		INSERT INTO wallet_passes (id, customer_card_id, platform, pass_type_id, serial_number, update_tag)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.CustomerCardID, p.Platform, p.PassTypeID, p.SerialNumber, p.UpdateTag,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return xerrors.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create wallet pass: %w", err)
	}
	return nil
}

func (r *WalletPassRepository) FindByID(ctx context.Context, id string) (*wallet.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM wallet_passes WHERE id = $1`
	return scanPass(r.db.QueryRow(ctx, query, id))
}

func (r *WalletPassRepository) FindBySerial(ctx context.Context, passTypeID, serial string) (*wallet.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM wallet_passes WHERE pass_type_id = $1 AND serial_number = $2`
	return scanPass(r.db.QueryRow(ctx, query, passTypeID, serial))
}

// FindBySerialNumber looks a pass up by serial alone. Serials are ULIDs or
// Google object ids, both unique across types.
func (r *WalletPassRepository) FindBySerialNumber(ctx context.Context, serial string) (*wallet.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM wallet_passes WHERE serial_number = $1 LIMIT 1`
	return scanPass(r.db.QueryRow(ctx, query, serial))
}

func (r *WalletPassRepository) FindByCardAndPlatform(ctx context.Context, customerCardID string, platform wallet.Platform) (*wallet.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM wallet_passes WHERE customer_card_id = $1 AND platform = $2`
	return scanPass(r.db.QueryRow(ctx, query, customerCardID, platform))
}

func (r *WalletPassRepository) ListByCard(ctx context.Context, customerCardID string) ([]wallet.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM wallet_passes WHERE customer_card_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, customerCardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet passes: %w", err)
	}
	defer rows.Close()

	passes := []wallet.Pass{}
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, *p)
	}
	return passes, rows.Err()
}

// ListUpdatedSince returns changed serials ordered by tag
func (r *WalletPassRepository) ListUpdatedSince(ctx context.Context, passTypeID, deviceID string, since int64) ([]wallet.SerialTag, error) {
	query := `
		SELECT p.serial_number, p.update_tag
		FROM wallet_passes p
		WHERE p.pass_type_id = $1 AND p.update_tag > $2
		ORDER BY p.update_tag ASC, p.serial_number ASC
	`
	args := []interface{}{passTypeID, since}

	if deviceID != "" {
		query = `
			SELECT p.serial_number, p.update_tag
			FROM wallet_passes p
			JOIN wallet_registrations r ON r.pass_id = p.id
			WHERE p.pass_type_id = $1 AND p.update_tag > $2 AND r.device_id = $3
			ORDER BY p.update_tag ASC, p.serial_number ASC
		`
		args = append(args, deviceID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list updated passes: %w", err)
	}
	defer rows.Close()

	tags := []wallet.SerialTag{}
	for rows.Next() {
		var st wallet.SerialTag
		if err := rows.Scan(&st.SerialNumber, &st.UpdateTag); err != nil {
			return nil, fmt.Errorf("failed to scan serial: %w", err)
		}
		tags = append(tags, st)
	}
	return tags, rows.Err()
}
