package app

import (
	"testing"

	"rewardjar-service/internal/domain/wallet"
	walletsvc "rewardjar-service/internal/service/wallet"
	"rewardjar-service/internal/websocket"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPWADeliveryRouting(t *testing.T) {
	logger := zap.NewNop()
	hub := websocket.NewHub(nil, logger)
	relay := websocket.NewRelay(nil, logger)

	d, platforms := pwaDelivery(relay, hub, false, logger)
	assert.IsType(t, &walletsvc.PWADeliverer{}, d)
	assert.Nil(t, platforms)

	d, platforms = pwaDelivery(nil, hub, true, logger)
	assert.IsType(t, &walletsvc.PWADeliverer{}, d)
	assert.Nil(t, platforms)

	// a worker with no relay must not claim items it cannot deliver
	d, platforms = pwaDelivery(nil, hub, false, logger)
	assert.Nil(t, d)
	assert.NotContains(t, platforms, wallet.PlatformPWA)
	assert.ElementsMatch(t, []wallet.Platform{wallet.PlatformApple, wallet.PlatformGoogle}, platforms)
}
