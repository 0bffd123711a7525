package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
)

type QueueRepository struct {
	s *Store
}

var _ wallet.QueueRepository = (*QueueRepository)(nil)

func (r *QueueRepository) EnqueueWithTagBump(ctx context.Context, item *wallet.QueueItem) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.passes[item.PassID]
	if !ok {
		return 0, xerrors.ErrNotFound
	}
	if _, exists := r.s.queue[item.ID]; exists {
		return 0, xerrors.ErrConflict
	}

	now := r.s.Now()
	p.UpdateTag++
	p.UpdatedAt = now
	r.s.passes[p.ID] = p

	item.CreatedAt = now
	r.s.queue[item.ID] = *item
	return p.UpdateTag, nil
}

func (r *QueueRepository) RequeueStale(ctx context.Context, claimedBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, q := range r.s.queue {
		if q.Status == wallet.QueueStatusProcessing && q.ClaimedAt != nil && q.ClaimedAt.Before(claimedBefore) {
			q.Status = wallet.QueueStatusPending
			q.ClaimedAt = nil
			r.s.queue[id] = q
			n++
		}
	}
	return n, nil
}

func (r *QueueRepository) Claim(ctx context.Context, now time.Time, limit int, platforms []wallet.Platform) ([]wallet.QueueItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := []wallet.QueueItem{}
	for _, q := range r.s.queue {
		if len(platforms) > 0 && !slices.Contains(platforms, q.Platform) {
			continue
		}
		if q.Status == wallet.QueueStatusPending && !q.ScheduledAt.After(now) {
			due = append(due, q)
		}
	}
	sortQueue(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	for i := range due {
		claimedAt := now
		due[i].Status = wallet.QueueStatusProcessing
		due[i].ClaimedAt = &claimedAt
		r.s.queue[due[i].ID] = due[i]
	}
	return due, nil
}

func (r *QueueRepository) Finish(ctx context.Context, id string, status wallet.QueueStatus, errMsg *string, processedAt time.Time, retry *wallet.QueueItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	q, ok := r.s.queue[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	if q.Status != wallet.QueueStatusProcessing {
		return fmt.Errorf("queue item %s is not processing: %w", id, xerrors.ErrConflict)
	}

	at := processedAt
	q.Status = status
	q.ErrorMessage = errMsg
	q.ProcessedAt = &at
	r.s.queue[id] = q

	if retry != nil {
		retry.CreatedAt = r.s.Now()
		r.s.queue[retry.ID] = *retry
	}
	return nil
}

func (r *QueueRepository) FindByID(ctx context.Context, id string) (*wallet.QueueItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.queue[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &q, nil
}

func (r *QueueRepository) List(ctx context.Context, filters *wallet.QueueListFilters) ([]wallet.QueueItem, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := []wallet.QueueItem{}
	for _, q := range r.s.queue {
		if filters.Status != nil && q.Status != *filters.Status {
			continue
		}
		if filters.Platform != nil && q.Platform != *filters.Platform {
			continue
		}
		if filters.PassID != "" && q.PassID != filters.PassID {
			continue
		}
		matched = append(matched, q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	total := int64(len(matched))
	start := (filters.Page - 1) * filters.PageSize
	if start >= len(matched) {
		return []wallet.QueueItem{}, total, nil
	}
	end := start + filters.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func sortQueue(items []wallet.QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].ScheduledAt.Before(items[j].ScheduledAt)
	})
}
