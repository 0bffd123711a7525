// internal/repository/postgres/wallet_device_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletDeviceRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewWalletDeviceRepository(db *pgxpool.Pool, dbWrapper *DB) *WalletDeviceRepository {
	return &WalletDeviceRepository{db: db, dbWrapper: dbWrapper}
}

const upsertDeviceQuery = `
	INSERT INTO wallet_devices (id, device_library_identifier, push_token, platform)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (device_library_identifier)
	DO UPDATE SET push_token = EXCLUDED.push_token, updated_at = NOW()
	RETURNING id, created_at, updated_at
`

// Upsert stores the device; re-registering an identifier replaces its push token.
func (r *WalletDeviceRepository) Upsert(ctx context.Context, d *wallet.Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, upsertDeviceQuery, d.ID, d.DeviceLibraryIdentifier, d.PushToken, d.Platform).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

func (r *WalletDeviceRepository) FindByLibraryID(ctx context.Context, deviceLibraryID string) (*wallet.Device, error) {
	query := `
		SELECT id, device_library_identifier, push_token, platform, created_at, updated_at
		FROM wallet_devices
		WHERE device_library_identifier = $1
	`

	var d wallet.Device
	err := r.db.QueryRow(ctx, query, deviceLibraryID).Scan(
		&d.ID, &d.DeviceLibraryIdentifier, &d.PushToken, &d.Platform, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find device: %w", err)
	}
	return &d, nil
}

const registerQuery = `
	INSERT INTO wallet_registrations (device_id, pass_id)
	VALUES ($1, $2)
	ON CONFLICT (device_id, pass_id) DO NOTHING
`

func (r *WalletDeviceRepository) Register(ctx context.Context, deviceID, passID string) (bool, error) {
	tag, err := r.db.Exec(ctx, registerQuery, deviceID, passID)
	if err != nil {
		return false, fmt.Errorf("failed to register device: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertAndRegister stores the device and links it to the pass atomically
func (r *WalletDeviceRepository) UpsertAndRegister(ctx context.Context, d *wallet.Device, passID string) (bool, error) {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := tx.QueryRow(ctx, upsertDeviceQuery, d.ID, d.DeviceLibraryIdentifier, d.PushToken, d.Platform).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return false, fmt.Errorf("failed to upsert device: %w", err)
	}

	tag, err := tx.Exec(ctx, registerQuery, d.ID, passID)
	if err != nil {
		return false, fmt.Errorf("failed to register device: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit registration: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *WalletDeviceRepository) Unregister(ctx context.Context, deviceID, passID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM wallet_registrations WHERE device_id = $1 AND pass_id = $2`, deviceID, passID)
	if err != nil {
		return fmt.Errorf("failed to unregister device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *WalletDeviceRepository) ListForPass(ctx context.Context, passID string) ([]wallet.Device, error) {
	query := `
		SELECT d.id, d.device_library_identifier, d.push_token, d.platform, d.created_at, d.updated_at
		FROM wallet_devices d
		JOIN wallet_registrations r ON r.device_id = d.id
		WHERE r.pass_id = $1
		ORDER BY r.created_at
	`

	rows, err := r.db.Query(ctx, query, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	devices := []wallet.Device{}
	for rows.Next() {
		var d wallet.Device
		if err := rows.Scan(&d.ID, &d.DeviceLibraryIdentifier, &d.PushToken, &d.Platform, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
