// internal/service/wallet/deliverers.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/apns"
	"rewardjar-service/internal/pkg/walletpass/google"

	"go.uber.org/zap"
)

// Pusher sends the empty APNs notification for a pass type.
type Pusher interface {
	PushPassUpdate(ctx context.Context, pushToken, topic string) error
}

// ObjectPatcher updates a Google Wallet object.
type ObjectPatcher interface {
	PatchLoyaltyObject(ctx context.Context, obj google.LoyaltyObject) error
}

// Broadcaster hands a pass update to whatever fans it out to the PWA clients
// watching serial, possibly in another process.
type Broadcaster interface {
	PublishPassUpdate(ctx context.Context, serial string, state *PassState) error
}

// AppleDeliverer notifies every device registered for the pass. Devices then
// fetch changed serials and the new pass through the web service.
type AppleDeliverer struct {
	devices wallet.DeviceRepository
	pusher  Pusher
	logger  *zap.Logger
}

func NewAppleDeliverer(devices wallet.DeviceRepository, pusher Pusher, logger *zap.Logger) *AppleDeliverer {
	return &AppleDeliverer{devices: devices, pusher: pusher, logger: logger}
}

// Deliver fails only when every device push failed. Devices APNs reports as
// gone are unregistered and do not count as failures.
func (d *AppleDeliverer) Deliver(ctx context.Context, del Delivery) error {
	devices, err := d.devices.ListForPass(ctx, del.Pass.ID)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	var failures []string
	for _, dev := range devices {
		err := d.pusher.PushPassUpdate(ctx, dev.PushToken, del.Pass.PassTypeID)
		switch {
		case err == nil:
		case errors.Is(err, apns.ErrUnregistered):
			d.logger.Info("removing unregistered device",
				zap.String("device", dev.DeviceLibraryIdentifier),
				zap.String("serial", del.Pass.SerialNumber))
			if uerr := d.devices.Unregister(ctx, dev.ID, del.Pass.ID); uerr != nil {
				d.logger.Warn("failed to unregister device", zap.String("device", dev.ID), zap.Error(uerr))
			}
		default:
			d.logger.Warn("apns push failed",
				zap.String("device", dev.DeviceLibraryIdentifier),
				zap.String("serial", del.Pass.SerialNumber),
				zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", dev.DeviceLibraryIdentifier, err))
		}
	}

	if len(failures) == len(devices) {
		return fmt.Errorf("all %d device pushes failed: %s", len(devices), strings.Join(failures, "; "))
	}
	return nil
}

// GoogleDeliverer patches the loyalty object with the live balance.
type GoogleDeliverer struct {
	svc     *WalletService
	patcher ObjectPatcher
}

func NewGoogleDeliverer(svc *WalletService, patcher ObjectPatcher) *GoogleDeliverer {
	return &GoogleDeliverer{svc: svc, patcher: patcher}
}

func (d *GoogleDeliverer) Deliver(ctx context.Context, del Delivery) error {
	if d.svc.opts.Google == nil {
		return d.svc.requirePlatform(wallet.PlatformGoogle)
	}
	return d.patcher.PatchLoyaltyObject(ctx, d.svc.googleObject(del.Card, del.Pass, del.Fields))
}

// PWADeliverer publishes the new state to open PWA sessions. Having no
// listeners is not an error; the PWA reads fresh state when it next opens.
// A failed publish is, so the item retries.
type PWADeliverer struct {
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewPWADeliverer(b Broadcaster, logger *zap.Logger) *PWADeliverer {
	return &PWADeliverer{broadcaster: b, logger: logger}
}

func (d *PWADeliverer) Deliver(ctx context.Context, del Delivery) error {
	err := d.broadcaster.PublishPassUpdate(ctx, del.Pass.SerialNumber, &PassState{
		Serial:    del.Pass.SerialNumber,
		UpdateTag: del.Pass.UpdateTag,
		Card:      del.Card,
		Fields:    del.Fields,
	})
	if err != nil {
		return fmt.Errorf("publish pwa update: %w", err)
	}
	d.logger.Debug("pwa update published", zap.String("serial", del.Pass.SerialNumber))
	return nil
}
