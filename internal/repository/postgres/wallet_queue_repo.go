// internal/repository/postgres/wallet_queue_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletQueueRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
}

func NewWalletQueueRepository(db *pgxpool.Pool, dbWrapper *DB) *WalletQueueRepository {
	return &WalletQueueRepository{db: db, dbWrapper: dbWrapper}
}

const queueColumns = `
	id, pass_id, platform, payload, status, attempt, max_attempts, parent_id,
	scheduled_at, claimed_at, processed_at, error_message, created_at`

func scanQueueItem(row pgx.Row) (*wallet.QueueItem, error) {
	var q wallet.QueueItem
	var payload []byte
	err := row.Scan(&q.ID, &q.PassID, &q.Platform, &payload, &q.Status, &q.Attempt, &q.MaxAttempts,
		&q.ParentID, &q.ScheduledAt, &q.ClaimedAt, &q.ProcessedAt, &q.ErrorMessage, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}
	q.Payload = payload
	return &q, nil
}

const insertQueueItemQuery = `
	INSERT INTO wallet_push_queue (id, pass_id, platform, payload, status, attempt, max_attempts, parent_id, scheduled_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at
`

func insertQueueItem(ctx context.Context, tx pgx.Tx, item *wallet.QueueItem) error {
	var payload []byte
	if len(item.Payload) > 0 {
		payload = item.Payload
	}
	return tx.QueryRow(ctx, insertQueueItemQuery,
		item.ID, item.PassID, item.Platform, payload, item.Status, item.Attempt, item.MaxAttempts,
		item.ParentID, item.ScheduledAt,
	).Scan(&item.CreatedAt)
}

// EnqueueWithTagBump bumps the pass tag then inserts the job, both or neither
func (r *WalletQueueRepository) EnqueueWithTagBump(ctx context.Context, item *wallet.QueueItem) (int64, error) {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var tag int64
	err = tx.QueryRow(ctx, `
		UPDATE wallet_passes
		SET update_tag = update_tag + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING update_tag
	`, item.PassID).Scan(&tag)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, xerrors.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to bump update tag: %w", err)
	}

	if err := insertQueueItem(ctx, tx, item); err != nil {
		return 0, fmt.Errorf("failed to enqueue push: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit enqueue: %w", err)
	}
	return tag, nil
}

func (r *WalletQueueRepository) RequeueStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE wallet_push_queue
		SET status = 'pending', claimed_at = NULL
		WHERE status = 'processing' AND claimed_at < $1
	`, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Claim flips due items to processing. SKIP LOCKED keeps overlapping
// processors from picking the same rows.
func (r *WalletQueueRepository) Claim(ctx context.Context, now time.Time, limit int, platforms []wallet.Platform) ([]wallet.QueueItem, error) {
	var only []string
	for _, p := range platforms {
		only = append(only, string(p))
	}

	query := `
		WITH due AS (
			SELECT id FROM wallet_push_queue
			WHERE status = 'pending' AND scheduled_at <= $1
			  AND ($3::text[] IS NULL OR platform = ANY($3::text[]))
			ORDER BY scheduled_at ASC, id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE wallet_push_queue q
		SET status = 'processing', claimed_at = $1
		FROM due
		WHERE q.id = due.id
		RETURNING ` + prefixColumns("q.", queueColumns)

	rows, err := r.db.Query(ctx, query, now, limit, only)
	if err != nil {
		return nil, fmt.Errorf("failed to claim queue items: %w", err)
	}
	defer rows.Close()

	items := []wallet.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING does not keep the CTE order
	sortByScheduledAt(items)
	return items, nil
}

// Finish records the outcome of a processing item
func (r *WalletQueueRepository) Finish(ctx context.Context, id string, status wallet.QueueStatus, errMsg *string, processedAt time.Time, retry *wallet.QueueItem) error {
	tx, err := r.dbWrapper.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE wallet_push_queue
		SET status = $2, error_message = $3, processed_at = $4
		WHERE id = $1 AND status = 'processing'
	`, id, status, errMsg, processedAt)
	if err != nil {
		return fmt.Errorf("failed to update queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queue item %s is not processing: %w", id, xerrors.ErrConflict)
	}

	if retry != nil {
		if err := insertQueueItem(ctx, tx, retry); err != nil {
			return fmt.Errorf("failed to enqueue retry: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *WalletQueueRepository) FindByID(ctx context.Context, id string) (*wallet.QueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM wallet_push_queue WHERE id = $1`
	return scanQueueItem(r.db.QueryRow(ctx, query, id))
}

// List returns queue items with filters and pagination
func (r *WalletQueueRepository) List(ctx context.Context, filters *wallet.QueueListFilters) ([]wallet.QueueItem, int64, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	if filters.Platform != nil {
		conditions = append(conditions, fmt.Sprintf("platform = $%d", argPos))
		args = append(args, *filters.Platform)
		argPos++
	}

	if filters.PassID != "" {
		conditions = append(conditions, fmt.Sprintf("pass_id = $%d", argPos))
		args = append(args, filters.PassID)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM wallet_push_queue WHERE %s", whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count queue items: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM wallet_push_queue
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, queueColumns, whereClause, argPos, argPos+1)
	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()

	items := []wallet.QueueItem{}
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func sortByScheduledAt(items []wallet.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].ScheduledAt.Before(items[j].ScheduledAt)
	})
}
