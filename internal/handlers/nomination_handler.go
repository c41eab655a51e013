package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"rugbuster/internal/auth"
	"rugbuster/internal/services"
)

// NominationHandler handles the public nomination endpoints
type NominationHandler struct {
	nominationService *services.NominationService
	adminService      *services.AdminService
}

// NewNominationHandler creates a new NominationHandler
func NewNominationHandler(nominationService *services.NominationService, adminService *services.AdminService) *NominationHandler {
	return &NominationHandler{
		nominationService: nominationService,
		adminService:      adminService,
	}
}

// GetNominations returns approved nominations for the leaderboard, pinned
// first, then by votes descending. Rank is the 1-based list position.
// GET /api/nominations
func (h *NominationHandler) GetNominations(c *gin.Context) {
	nominations, err := h.nominationService.ListApproved()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nominations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nominations,
		"count":   len(nominations),
	})
}

// GetPendingNominations returns nominations still awaiting review,
// newest first
// GET /api/nominations/pending
func (h *NominationHandler) GetPendingNominations(c *gin.Context) {
	nominations, err := h.nominationService.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nominations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nominations,
		"count":   len(nominations),
	})
}

// GetNominationByID returns one nomination
// GET /api/nominations/:id
func (h *NominationHandler) GetNominationByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nomination ID"})
		return
	}

	nomination, err := h.nominationService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Nomination not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nomination"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// SubmitNomination creates a pending nomination for review
// POST /api/nominations
func (h *NominationHandler) SubmitNomination(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Name            string  `json:"name" binding:"required"`
		TwitterHandle   string  `json:"twitter_handle" binding:"required"`
		ScamDescription string  `json:"scam_description" binding:"required"`
		AmountStolenUSD string  `json:"amount_stolen_usd" binding:"required"`
		TokenName       *string `json:"token_name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.AmountStolenUSD)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_stolen_usd must be a number"})
		return
	}

	nomination, err := h.nominationService.Submit(userID, services.SubmitInput{
		Name:            req.Name,
		TwitterHandle:   req.TwitterHandle,
		ScamDescription: req.ScamDescription,
		AmountStolenUSD: amount,
		TokenName:       req.TokenName,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create nomination"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// Vote counts one vote by the current user
// POST /api/nominations/:id/vote
func (h *NominationHandler) Vote(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nomination ID"})
		return
	}

	nomination, err := h.nominationService.Vote(userID, uint(id), h.isAdmin(c))
	if err != nil {
		h.respondActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// SignLawsuit counts one lawsuit signature with the signer's details
// POST /api/nominations/:id/sign
func (h *NominationHandler) SignLawsuit(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nomination ID"})
		return
	}

	var req struct {
		FirstName     string `json:"first_name" binding:"required"`
		LastName      string `json:"last_name" binding:"required"`
		Email         string `json:"email" binding:"required,email"`
		Country       string `json:"country"`
		PhoneNumber   string `json:"phone_number"`
		WalletAddress string `json:"wallet_address"`
		AmountLostUSD string `json:"amount_lost_usd"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amountLost := decimal.Zero
	if req.AmountLostUSD != "" {
		amountLost, err = decimal.NewFromString(req.AmountLostUSD)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount_lost_usd must be a number"})
			return
		}
	}

	nomination, err := h.nominationService.SignLawsuit(userID, uint(id), services.SignatureDetails{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Country:       req.Country,
		PhoneNumber:   req.PhoneNumber,
		WalletAddress: req.WalletAddress,
		AmountLostUSD: amountLost,
	}, h.isAdmin(c))
	if err != nil {
		h.respondActionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

func (h *NominationHandler) isAdmin(c *gin.Context) bool {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return false
	}
	return h.adminService.IsAdminUser(userID)
}

func (h *NominationHandler) respondActionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrAlreadyActed):
		c.JSON(http.StatusConflict, gin.H{"error": "You have already done this"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Nomination not found"})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Action failed"})
	}
}
