package wallet

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/apns"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass/google"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePusher struct {
	results map[string]error
	pushed  []string
}

func (p *fakePusher) PushPassUpdate(ctx context.Context, pushToken, topic string) error {
	p.pushed = append(p.pushed, pushToken)
	return p.results[pushToken]
}

func registerDevices(t *testing.T, f *fixture, serial string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := f.svc.RegisterDeviceForPass(context.Background(), testPassType, serial,
			fmt.Sprintf("device-%d", i), fmt.Sprintf("token-%d", i))
		require.NoError(t, err)
	}
}

func deliveryFor(t *testing.T, f *fixture, passID string) Delivery {
	t.Helper()
	pass, err := f.store.Passes().FindByID(context.Background(), passID)
	require.NoError(t, err)
	cc, err := f.svc.loadCard(context.Background(), pass.CustomerCardID)
	require.NoError(t, err)
	return Delivery{Pass: pass, Card: cc}
}

func TestAppleDelivererNoDevicesIsSuccess(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	pusher := &fakePusher{}

	d := NewAppleDeliverer(f.store.Devices(), pusher, zap.NewNop())
	assert.NoError(t, d.Deliver(context.Background(), deliveryFor(t, f, "p-apple")))
	assert.Empty(t, pusher.pushed)
}

func TestAppleDelivererPartialFailureSucceeds(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	registerDevices(t, f, "SERIAL-A", 2)
	pusher := &fakePusher{results: map[string]error{"token-1": errors.New("connection reset")}}

	d := NewAppleDeliverer(f.store.Devices(), pusher, zap.NewNop())
	assert.NoError(t, d.Deliver(context.Background(), deliveryFor(t, f, "p-apple")))
	assert.ElementsMatch(t, []string{"token-1", "token-2"}, pusher.pushed)
}

func TestAppleDelivererAllFail(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	registerDevices(t, f, "SERIAL-A", 2)
	pusher := &fakePusher{results: map[string]error{
		"token-1": errors.New("connection reset"),
		"token-2": errors.New("timeout"),
	}}

	d := NewAppleDeliverer(f.store.Devices(), pusher, zap.NewNop())
	err := d.Deliver(context.Background(), deliveryFor(t, f, "p-apple"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 device pushes failed")
}

func TestAppleDelivererRemovesUnregisteredDevices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPass(t, "p-apple", wallet.PlatformApple, "SERIAL-A")
	registerDevices(t, f, "SERIAL-A", 2)
	pusher := &fakePusher{results: map[string]error{
		"token-1": fmt.Errorf("status 410: %w", apns.ErrUnregistered),
	}}

	d := NewAppleDeliverer(f.store.Devices(), pusher, zap.NewNop())
	require.NoError(t, d.Deliver(ctx, deliveryFor(t, f, "p-apple")))

	devices, err := f.store.Devices().ListForPass(ctx, "p-apple")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "device-2", devices[0].DeviceLibraryIdentifier)
}

type fakePatcher struct {
	objects []google.LoyaltyObject
}

func (p *fakePatcher) PatchLoyaltyObject(ctx context.Context, obj google.LoyaltyObject) error {
	p.objects = append(p.objects, obj)
	return nil
}

func TestGoogleDelivererPatchesStoredObject(t *testing.T) {
	f := newFixture(t)
	pass := f.seedPass(t, "p-google", wallet.PlatformGoogle, "")
	patcher := &fakePatcher{}

	del := deliveryFor(t, f, "p-google")
	del.Fields.Current, del.Fields.Total = 4, 10

	d := NewGoogleDeliverer(f.svc, patcher)
	require.NoError(t, d.Deliver(context.Background(), del))
	require.Len(t, patcher.objects, 1)
	assert.Equal(t, pass.SerialNumber, patcher.objects[0].ID)
	assert.Equal(t, pass.PassTypeID, patcher.objects[0].ClassID)

	f.svc.opts.Google = nil
	assert.ErrorIs(t, d.Deliver(context.Background(), del), xerrors.ErrNotConfigured)
}

type fakeBroadcaster struct {
	serials []string
	states  []*PassState
	err     error
}

func (b *fakeBroadcaster) PublishPassUpdate(ctx context.Context, serial string, state *PassState) error {
	b.serials = append(b.serials, serial)
	b.states = append(b.states, state)
	return b.err
}

func TestPWADelivererPublishes(t *testing.T) {
	f := newFixture(t)
	f.seedPass(t, "p-pwa", wallet.PlatformPWA, "SERIAL-P")
	b := &fakeBroadcaster{}

	d := NewPWADeliverer(b, zap.NewNop())
	require.NoError(t, d.Deliver(context.Background(), deliveryFor(t, f, "p-pwa")))
	assert.Equal(t, []string{"SERIAL-P"}, b.serials)
	assert.Equal(t, int64(1), b.states[0].UpdateTag)
}

func TestPWADelivererPublishFailureRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedPass(t, "p-pwa", wallet.PlatformPWA, "SERIAL-P")
	_, err := f.svc.Enqueue(ctx, "p-pwa")
	require.NoError(t, err)

	b := &fakeBroadcaster{err: errors.New("redis: connection refused")}
	p := NewProcessor(f.svc, map[wallet.Platform]Deliverer{
		wallet.PlatformPWA: NewPWADeliverer(b, zap.NewNop()),
	}, testProcessorConfig(), zap.NewNop())

	res, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Retried)
	assert.Len(t, b.serials, 1)
}
