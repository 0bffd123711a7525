// internal/handlers/wallet/admin_handler.go
package wallet

import (
	"net/http"

	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/pkg/response"
	service "rewardjar-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	walletService *service.WalletService
	processor     *service.Processor
}

func NewAdminHandler(walletService *service.WalletService, processor *service.Processor) *AdminHandler {
	return &AdminHandler{
		walletService: walletService,
		processor:     processor,
	}
}

// Status reports which wallet platforms are enabled
func (h *AdminHandler) Status(c *gin.Context) {
	response.Success(c, http.StatusOK, "wallet status", gin.H{
		"platforms": h.walletService.PlatformStatus(),
	})
}

// ProcessQueue runs one batch of the push queue
func (h *AdminHandler) ProcessQueue(c *gin.Context) {
	result, err := h.processor.ProcessBatch(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to process wallet queue", err)
		return
	}
	response.Success(c, http.StatusOK, "wallet queue processed", result)
}

// ListQueue lists queue items, newest first
func (h *AdminHandler) ListQueue(c *gin.Context) {
	var filters wallet.QueueListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}
	if filters.Status != nil && !filters.Status.Valid() {
		response.ValidationError(c, "invalid status filter", nil)
		return
	}
	if filters.Platform != nil && !filters.Platform.Valid() {
		response.ValidationError(c, "invalid platform filter", nil)
		return
	}

	result, err := h.walletService.ListQueue(c.Request.Context(), &filters)
	if err != nil {
		response.FromError(c, "failed to list wallet queue", err)
		return
	}
	response.Success(c, http.StatusOK, "wallet queue retrieved", result)
}

// PushPass queues an update for one pass
func (h *AdminHandler) PushPass(c *gin.Context) {
	item, err := h.walletService.Enqueue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to queue pass update", err)
		return
	}
	response.Success(c, http.StatusAccepted, "pass update queued", item)
}
