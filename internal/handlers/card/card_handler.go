// internal/handlers/card/card_handler.go
package card

import (
	"errors"
	"io"
	"net/http"

	"rewardjar-service/internal/domain/card"
	"rewardjar-service/internal/domain/wallet"
	"rewardjar-service/internal/middleware"
	"rewardjar-service/internal/pkg/response"
	cardsvc "rewardjar-service/internal/service/card"
	walletsvc "rewardjar-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
)

type CardHandler struct {
	cardService   *cardsvc.CardService
	walletService *walletsvc.WalletService
}

func NewCardHandler(cardService *cardsvc.CardService, walletService *walletsvc.WalletService) *CardHandler {
	return &CardHandler{
		cardService:   cardService,
		walletService: walletService,
	}
}

// Enroll creates a customer card on a template
func (h *CardHandler) Enroll(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req card.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	state, err := h.cardService.Enroll(c.Request.Context(), scope, &req)
	if err != nil {
		response.FromError(c, "failed to enroll customer", err)
		return
	}
	response.Success(c, http.StatusCreated, "customer enrolled", state)
}

// GetCard returns the card with its derived fields and passes
func (h *CardHandler) GetCard(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	state, err := h.cardService.GetCardState(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.FromError(c, "card not available", err)
		return
	}
	response.Success(c, http.StatusOK, "card retrieved", state)
}

// AddStamps records stamps on a stamp card
func (h *CardHandler) AddStamps(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req card.AddStampsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.cardService.AddStamps(c.Request.Context(), scope, c.Param("id"), req.Count)
	if err != nil {
		response.FromError(c, "failed to add stamps", err)
		return
	}
	response.Success(c, http.StatusOK, "stamps added", state)
}

// UseSessions records used sessions on a membership card
func (h *CardHandler) UseSessions(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var req card.UseSessionsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	state, err := h.cardService.UseSessions(c.Request.Context(), scope, c.Param("id"), req.Count)
	if err != nil {
		response.FromError(c, "failed to use sessions", err)
		return
	}
	response.Success(c, http.StatusOK, "sessions recorded", state)
}

// IssuePass creates or returns the wallet pass of the card on a platform
func (h *CardHandler) IssuePass(c *gin.Context) {
	if !h.authorizeCard(c) {
		return
	}

	issued, err := h.walletService.IssuePass(c.Request.Context(), c.Param("id"), wallet.Platform(c.Param("platform")))
	if err != nil {
		response.FromError(c, "failed to issue pass", err)
		return
	}
	response.Success(c, http.StatusOK, "pass issued", issued)
}

// GoogleSaveURL returns the "Add to Google Wallet" link of the card
func (h *CardHandler) GoogleSaveURL(c *gin.Context) {
	if !h.authorizeCard(c) {
		return
	}

	url, err := h.walletService.GoogleSaveURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to build save link", err)
		return
	}
	response.Success(c, http.StatusOK, "save link created", gin.H{"save_url": url})
}

// authorizeCard checks the caller may act on the card in the path
func (h *CardHandler) authorizeCard(c *gin.Context) bool {
	scope, ok := h.scope(c)
	if !ok {
		return false
	}
	if _, err := h.cardService.GetCardState(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.FromError(c, "card not available", err)
		return false
	}
	return true
}

func (h *CardHandler) scope(c *gin.Context) (string, bool) {
	scope, ok := middleware.BusinessScope(c)
	if !ok {
		response.Forbidden(c, "token is not bound to a business")
		return "", false
	}
	return scope, true
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		response.ValidationError(c, "invalid request", err)
		return false
	}
	return true
}
