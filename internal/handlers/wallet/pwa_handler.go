// internal/handlers/wallet/pwa_handler.go
package wallet

import (
	"encoding/json"
	"net/http"

	"rewardjar-service/internal/pkg/response"
	"rewardjar-service/internal/pkg/walletpass/pwa"
	service "rewardjar-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
)

type PWAHandler struct {
	walletService *service.WalletService
}

func NewPWAHandler(walletService *service.WalletService) *PWAHandler {
	return &PWAHandler{walletService: walletService}
}

// Manifest handles GET /pwa/:serial/manifest.json
func (h *PWAHandler) Manifest(c *gin.Context) {
	manifest, err := h.walletService.PWAManifest(c.Request.Context(), c.Param("serial"))
	if err != nil {
		response.FromError(c, "manifest not available", err)
		return
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		response.FromError(c, "failed to encode manifest", err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, pwa.ContentType, body)
}
