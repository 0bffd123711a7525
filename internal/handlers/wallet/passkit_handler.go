// internal/handlers/wallet/passkit_handler.go
package wallet

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rewardjar-service/internal/domain/wallet"
	xerrors "rewardjar-service/internal/pkg/errors"
	"rewardjar-service/internal/pkg/walletpass/apple"
	service "rewardjar-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	applePassScheme     = "ApplePass"
	passesUpdatedSince  = "passesUpdatedSince"
	lastModifiedHeader  = "Last-Modified"
	ifModifiedSinceHead = "If-Modified-Since"
)

// PassKitHandler serves the Apple Wallet web service. Responses follow the
// PassKit protocol, so they carry bare status codes instead of the API
// envelope.
type PassKitHandler struct {
	walletService *service.WalletService
	logger        *zap.Logger
}

func NewPassKitHandler(walletService *service.WalletService, logger *zap.Logger) *PassKitHandler {
	return &PassKitHandler{
		walletService: walletService,
		logger:        logger,
	}
}

// RequireApple answers 503 while Apple Wallet is not configured
func (h *PassKitHandler) RequireApple() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.walletService.PlatformStatus()[wallet.PlatformApple] {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

// RegisterDevice handles POST /v1/devices/:device/registrations/:passType/:serial
func (h *PassKitHandler) RegisterDevice(c *gin.Context) {
	serial := c.Param("serial")
	if !h.authenticate(c, serial) {
		return
	}

	var req wallet.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	created, err := h.walletService.RegisterDeviceForPass(c.Request.Context(),
		c.Param("passType"), serial, c.Param("device"), req.PushToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	if created {
		c.Status(http.StatusCreated)
		return
	}
	c.Status(http.StatusOK)
}

// UnregisterDevice handles DELETE /v1/devices/:device/registrations/:passType/:serial
func (h *PassKitHandler) UnregisterDevice(c *gin.Context) {
	serial := c.Param("serial")
	if !h.authenticate(c, serial) {
		return
	}

	err := h.walletService.UnregisterPass(c.Request.Context(), c.Param("passType"), serial, c.Param("device"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ChangedSerials handles GET /v1/devices/:device/registrations/:passType
func (h *PassKitHandler) ChangedSerials(c *gin.Context) {
	var since int64
	if raw := c.Query(passesUpdatedSince); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		since = v
	}

	changed, err := h.walletService.ListChangedSerials(c.Request.Context(), c.Param("passType"), c.Param("device"), since)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(changed.SerialNumbers) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, wallet.SerialNumbersResponse{
		SerialNumbers: changed.SerialNumbers,
		LastUpdated:   strconv.FormatInt(changed.LastUpdated, 10),
	})
}

// LatestPass handles GET /v1/passes/:passType/:serial
func (h *PassKitHandler) LatestPass(c *gin.Context) {
	serial := c.Param("serial")
	if !h.authenticate(c, serial) {
		return
	}

	var since time.Time
	if raw := c.GetHeader(ifModifiedSinceHead); raw != "" {
		if t, err := http.ParseTime(raw); err == nil {
			since = t
		}
	}

	latest, err := h.walletService.GetLatestPass(c.Request.Context(), c.Param("passType"), serial, since)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header(lastModifiedHeader, latest.LastModified.UTC().Format(http.TimeFormat))
	if latest.NotModified {
		c.Status(http.StatusNotModified)
		return
	}
	if latest.Archive != nil {
		c.Data(http.StatusOK, apple.ContentType, latest.Archive)
		return
	}
	c.JSON(http.StatusOK, latest.Document)
}

// Log handles POST /v1/log
func (h *PassKitHandler) Log(c *gin.Context) {
	var req wallet.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	h.walletService.RecordDeviceLogs(c.Request.Context(), req.Logs)
	c.Status(http.StatusOK)
}

// authenticate checks "Authorization: ApplePass <token>" for serial
func (h *PassKitHandler) authenticate(c *gin.Context, serial string) bool {
	header := c.GetHeader("Authorization")
	token := ""
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == applePassScheme {
		token = strings.TrimSpace(parts[1])
	}

	if err := h.walletService.AuthenticateDevice(serial, token); err != nil {
		h.logger.Warn("passkit request rejected",
			zap.String("serial", serial),
			zap.String("ip", c.ClientIP()))
		c.AbortWithStatus(http.StatusUnauthorized)
		return false
	}
	return true
}

func (h *PassKitHandler) fail(c *gin.Context, err error) {
	status := xerrors.HTTPStatus(err)
	if status == http.StatusInternalServerError || errors.Is(err, xerrors.ErrNotConfigured) {
		h.logger.Error("passkit request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatus(status)
}
