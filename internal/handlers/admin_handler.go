package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rugbuster/internal/auth"
	"rugbuster/internal/logger"
	"rugbuster/internal/services"
	"rugbuster/internal/storage"
)

// maxImageSize limits admin image uploads to 5 MiB.
const maxImageSize = 5 << 20

// AdminHandler backs the management console endpoints
type AdminHandler struct {
	adminService *services.AdminService
	images       storage.ImageStore
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService *services.AdminService, images storage.ImageStore) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		images:       images,
	}
}

// AdminMiddleware resolves the authenticated user id against the
// allow-list. The admin_users table is the only authority; nothing the
// client asserts about itself is consulted.
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := auth.GetUserID(c)
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not an admin"})
			c.Abort()
			return
		}

		admin, err := h.adminService.GetAdminByUserID(userID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not an admin"})
			c.Abort()
			return
		}

		c.Set("admin_id", admin.ID)
		c.Next()
	}
}

// GetNominations lists nominations for the console, any status
// GET /api/admin/nominations?status=
func (h *AdminHandler) GetNominations(c *gin.Context) {
	status := c.Query("status")

	nominations, err := h.adminService.ListNominations(status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch nominations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nominations,
	})
}

// UpdateNomination edits nomination fields directly
// PUT /api/admin/nominations/:id
func (h *AdminHandler) UpdateNomination(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var req struct {
		Name              *string `json:"name"`
		TwitterHandle     *string `json:"twitter_handle"`
		ScamDescription   *string `json:"scam_description"`
		AmountStolenUSD   *string `json:"amount_stolen_usd"`
		TokenName         *string `json:"token_name"`
		Votes             *int    `json:"votes"`
		LawsuitSignatures *int    `json:"lawsuit_signatures"`
		TargetSignatures  *int    `json:"target_signatures"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := services.NominationPatch{
		Name:              req.Name,
		TwitterHandle:     req.TwitterHandle,
		ScamDescription:   req.ScamDescription,
		TokenName:         req.TokenName,
		Votes:             req.Votes,
		LawsuitSignatures: req.LawsuitSignatures,
		TargetSignatures:  req.TargetSignatures,
	}
	if req.AmountStolenUSD != nil {
		amount, err := decimal.NewFromString(*req.AmountStolenUSD)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount_stolen_usd must be a number"})
			return
		}
		patch.AmountStolenUSD = &amount
	}

	nomination, err := h.adminService.UpdateNomination(adminID, id, patch)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// AdjustCounter moves a counter by ±1 or ±100
// POST /api/admin/nominations/:id/counter
func (h *AdminHandler) AdjustCounter(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var req struct {
		Field string `json:"field" binding:"required"`
		Delta int    `json:"delta" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nomination, err := h.adminService.AdjustCounter(adminID, id, req.Field, req.Delta)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDelta) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// SetStatus approves, rejects or resets a nomination
// POST /api/admin/nominations/:id/status
func (h *AdminHandler) SetStatus(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nomination, err := h.adminService.SetStatus(adminID, id, req.Status)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// SetPinned toggles the pin flag
// POST /api/admin/nominations/:id/pin
func (h *AdminHandler) SetPinned(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	var req struct {
		Pinned *bool `json:"pinned" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	nomination, err := h.adminService.SetPinned(adminID, id, *req.Pinned)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// DeleteNomination permanently removes an entry
// DELETE /api/admin/nominations/:id
func (h *AdminHandler) DeleteNomination(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	if err := h.adminService.DeleteNomination(adminID, id); err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Nomination deleted",
	})
}

// UploadImage accepts a multipart image, stores it under a randomized key
// and writes the public URL onto the nomination
// POST /api/admin/nominations/:id/image
func (h *AdminHandler) UploadImage(c *gin.Context) {
	adminID := c.GetUint("admin_id")
	id, ok := h.paramID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if fileHeader.Size > maxImageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds 5MB limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}

	url, err := h.images.Put(fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, storage.ErrNotImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload an image file"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
		return
	}

	nomination, err := h.adminService.SetImageURL(adminID, id, url)
	if err != nil {
		h.respondAdminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    nomination,
	})
}

// GetDashboard returns console landing totals
// GET /api/admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	totals, err := h.adminService.GetDashboard()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    totals,
	})
}

// GetAdminLogs returns recent audit entries
// GET /api/admin/logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	logs, err := h.adminService.GetAdminLogs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
	})
}

func (h *AdminHandler) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid nomination ID"})
		return 0, false
	}
	return uint(id), true
}

func (h *AdminHandler) respondAdminError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Nomination not found"})
		return
	}
	logger.Error("admin operation failed",
		zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
}
