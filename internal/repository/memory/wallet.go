package memory

import (
	"context"
	"sort"
	"time"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"

	"github.com/google/uuid"
)

type PassRepository struct {
	s *Store
}

var _ wallet.PassRepository = (*PassRepository)(nil)

func (r *PassRepository) Create(ctx context.Context, p *wallet.Pass) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.passes {
		if existing.CustomerCardID == p.CustomerCardID && existing.Platform == p.Platform {
			return xerrors.ErrConflict
		}
		if existing.PassTypeID == p.PassTypeID && existing.SerialNumber == p.SerialNumber {
			return xerrors.ErrConflict
		}
	}
	now := r.s.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.passes[p.ID] = *p
	return nil
}

func (r *PassRepository) FindByID(ctx context.Context, id string) (*wallet.Pass, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.passes[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &p, nil
}

func (r *PassRepository) FindBySerial(ctx context.Context, passTypeID, serial string) (*wallet.Pass, error) {
	return r.find(func(p wallet.Pass) bool {
		return p.PassTypeID == passTypeID && p.SerialNumber == serial
	})
}

func (r *PassRepository) FindBySerialNumber(ctx context.Context, serial string) (*wallet.Pass, error) {
	return r.find(func(p wallet.Pass) bool { return p.SerialNumber == serial })
}

func (r *PassRepository) FindByCardAndPlatform(ctx context.Context, customerCardID string, platform wallet.Platform) (*wallet.Pass, error) {
	return r.find(func(p wallet.Pass) bool {
		return p.CustomerCardID == customerCardID && p.Platform == platform
	})
}

func (r *PassRepository) find(match func(wallet.Pass) bool) (*wallet.Pass, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.passes {
		if match(p) {
			return &p, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *PassRepository) ListByCard(ctx context.Context, customerCardID string) ([]wallet.Pass, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	passes := []wallet.Pass{}
	for _, p := range r.s.passes {
		if p.CustomerCardID == customerCardID {
			passes = append(passes, p)
		}
	}
	sort.Slice(passes, func(i, j int) bool {
		if passes[i].CreatedAt.Equal(passes[j].CreatedAt) {
			return passes[i].Platform < passes[j].Platform
		}
		return passes[i].CreatedAt.Before(passes[j].CreatedAt)
	})
	return passes, nil
}

func (r *PassRepository) ListUpdatedSince(ctx context.Context, passTypeID, deviceID string, since int64) ([]wallet.SerialTag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tags := []wallet.SerialTag{}
	for _, p := range r.s.passes {
		if p.PassTypeID != passTypeID || p.UpdateTag <= since {
			continue
		}
		if deviceID != "" {
			if _, ok := r.s.registrations[[2]string{deviceID, p.ID}]; !ok {
				continue
			}
		}
		tags = append(tags, wallet.SerialTag{SerialNumber: p.SerialNumber, UpdateTag: p.UpdateTag})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].UpdateTag == tags[j].UpdateTag {
			return tags[i].SerialNumber < tags[j].SerialNumber
		}
		return tags[i].UpdateTag < tags[j].UpdateTag
	})
	return tags, nil
}

type DeviceRepository struct {
	s *Store
}

var _ wallet.DeviceRepository = (*DeviceRepository)(nil)

func (r *DeviceRepository) Upsert(ctx context.Context, d *wallet.Device) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.upsertLocked(d)
	return nil
}

func (r *DeviceRepository) upsertLocked(d *wallet.Device) {
	now := r.s.Now()
	for id, existing := range r.s.devices {
		if existing.DeviceLibraryIdentifier == d.DeviceLibraryIdentifier {
			existing.PushToken = d.PushToken
			existing.UpdatedAt = now
			r.s.devices[id] = existing
			*d = existing
			return
		}
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt, d.UpdatedAt = now, now
	r.s.devices[d.ID] = *d
}

func (r *DeviceRepository) FindByLibraryID(ctx context.Context, deviceLibraryID string) (*wallet.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.devices {
		if d.DeviceLibraryIdentifier == deviceLibraryID {
			return &d, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (r *DeviceRepository) Register(ctx context.Context, deviceID, passID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.registerLocked(deviceID, passID)
}

func (r *DeviceRepository) registerLocked(deviceID, passID string) (bool, error) {
	if _, ok := r.s.devices[deviceID]; !ok {
		return false, xerrors.ErrNotFound
	}
	if _, ok := r.s.passes[passID]; !ok {
		return false, xerrors.ErrNotFound
	}
	key := [2]string{deviceID, passID}
	if _, exists := r.s.registrations[key]; exists {
		return false, nil
	}
	r.s.registrations[key] = r.s.Now()
	return true, nil
}

func (r *DeviceRepository) UpsertAndRegister(ctx context.Context, d *wallet.Device, passID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.passes[passID]; !ok {
		return false, xerrors.ErrNotFound
	}
	r.upsertLocked(d)
	return r.registerLocked(d.ID, passID)
}

func (r *DeviceRepository) Unregister(ctx context.Context, deviceID, passID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := [2]string{deviceID, passID}
	if _, ok := r.s.registrations[key]; !ok {
		return xerrors.ErrNotFound
	}
	delete(r.s.registrations, key)
	return nil
}

func (r *DeviceRepository) ListForPass(ctx context.Context, passID string) ([]wallet.Device, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type registered struct {
		device wallet.Device
		at     time.Time
	}
	var found []registered
	for key, at := range r.s.registrations {
		if key[1] == passID {
			found = append(found, registered{device: r.s.devices[key[0]], at: at})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].at.Equal(found[j].at) {
			return found[i].device.DeviceLibraryIdentifier < found[j].device.DeviceLibraryIdentifier
		}
		return found[i].at.Before(found[j].at)
	})

	devices := make([]wallet.Device, 0, len(found))
	for _, f := range found {
		devices = append(devices, f.device)
	}
	return devices, nil
}
