// internal/domain/wallet/repository.go
package wallet

import (
	"context"
	"time"
)

type PassRepository interface {
	Create(ctx context.Context, pass *Pass) error
	FindByID(ctx context.Context, id string) (*Pass, error)
	FindBySerial(ctx context.Context, passTypeID, serial string) (*Pass, error)
	FindBySerialNumber(ctx context.Context, serial string) (*Pass, error)
	FindByCardAndPlatform(ctx context.Context, customerCardID string, platform Platform) (*Pass, error)
	ListByCard(ctx context.Context, customerCardID string) ([]Pass, error)

	// ListUpdatedSince returns passes of passTypeID with update_tag > since,
	// ascending by tag. A non-empty deviceID limits the result to passes the
	// device is registered for.
	ListUpdatedSince(ctx context.Context, passTypeID, deviceID string, since int64) ([]SerialTag, error)
}

type DeviceRepository interface {
	Upsert(ctx context.Context, device *Device) error
	FindByLibraryID(ctx context.Context, deviceLibraryID string) (*Device, error)

	// Register links a device to a pass; created is false when the link existed.
	Register(ctx context.Context, deviceID, passID string) (bool, error)
	// UpsertAndRegister stores the device and its registration in one transaction.
	UpsertAndRegister(ctx context.Context, device *Device, passID string) (bool, error)
	Unregister(ctx context.Context, deviceID, passID string) error
	ListForPass(ctx context.Context, passID string) ([]Device, error)
}

type QueueRepository interface {
	// EnqueueWithTagBump increments the pass update_tag and inserts item in
	// the same transaction. It returns the new tag.
	EnqueueWithTagBump(ctx context.Context, item *QueueItem) (int64, error)

	// RequeueStale moves items claimed before claimedBefore back to pending.
	RequeueStale(ctx context.Context, claimedBefore time.Time) (int64, error)

	// Claim moves up to limit due pending items to processing, oldest
	// scheduled_at first. Concurrent callers never claim the same item.
	// An empty platforms list claims every platform.
	Claim(ctx context.Context, now time.Time, limit int, platforms []Platform) ([]QueueItem, error)

	// Finish records the outcome of a claimed item and, when retry is not
	// nil, inserts the retry item in the same transaction.
	Finish(ctx context.Context, id string, status QueueStatus, errMsg *string, processedAt time.Time, retry *QueueItem) error

	FindByID(ctx context.Context, id string) (*QueueItem, error)
	List(ctx context.Context, filters *QueueListFilters) ([]QueueItem, int64, error)
}
