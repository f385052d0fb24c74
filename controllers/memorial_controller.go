package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

// MemorialController serves memorial pages and their owner dashboard
type MemorialController struct {
	memorials *services.MemorialProvisioner
	content   *services.ContentService
}

// NewMemorialController creates a memorial controller
func NewMemorialController(memorials *services.MemorialProvisioner, content *services.ContentService) *MemorialController {
	return &MemorialController{memorials: memorials, content: content}
}

// CreateMemorial handles POST /api/v1/memorials - the caller becomes the owner
func (mc *MemorialController) CreateMemorial(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateMemorialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.OwnerID = &userID

	memorial, err := mc.memorials.CreateMemorial(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to create memorial")
		return
	}

	respondData(c, http.StatusCreated, memorial)
}

// ListMyMemorials handles GET /api/v1/memorials
func (mc *MemorialController) ListMyMemorials(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	memorials, err := mc.memorials.ListOwned(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch memorials")
		return
	}

	respondData(c, http.StatusOK, memorials)
}

// GetMemorial handles GET /api/v1/memorials/:identifier - the public page
func (mc *MemorialController) GetMemorial(c *gin.Context) {
	overview, err := mc.content.PublicOverview(c.Request.Context(), c.Param("identifier"))
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch memorial")
		return
	}

	respondData(c, http.StatusOK, overview)
}

// GetDashboard handles GET /api/v1/memorials/:identifier/dashboard - owner view including
// unapproved stories
func (mc *MemorialController) GetDashboard(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	overview, err := mc.content.Dashboard(c.Request.Context(), c.Param("identifier"), userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch dashboard")
		return
	}

	respondData(c, http.StatusOK, overview)
}

// UpdateMemorial handles PUT /api/v1/memorials/:identifier
func (mc *MemorialController) UpdateMemorial(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.UpdateMemorialInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	memorial, err := mc.memorials.Update(c.Request.Context(), c.Param("identifier"), userID, req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to update memorial")
		return
	}

	respondData(c, http.StatusOK, memorial)
}

// DeleteMemorial handles DELETE /api/v1/memorials/:identifier
func (mc *MemorialController) DeleteMemorial(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := mc.memorials.Delete(c.Request.Context(), c.Param("identifier"), userID); err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to delete memorial")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Memorial deleted",
	})
}

// ClaimMemorial handles POST /api/v1/memorials/:identifier/claim - takes ownership of a
// memorial provisioned from a payment
func (mc *MemorialController) ClaimMemorial(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	memorial, err := mc.memorials.Claim(c.Request.Context(), c.Param("identifier"), userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to claim memorial")
		return
	}

	respondData(c, http.StatusOK, memorial)
}

// RegenerateQRCode handles POST /api/v1/memorials/:identifier/qrcode
func (mc *MemorialController) RegenerateQRCode(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	memorial, err := mc.memorials.ResolveOwned(ctx, c.Param("identifier"), userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch memorial")
		return
	}

	memorial, err = mc.memorials.ProvisionQRCode(ctx, memorial)
	if err != nil {
		respondServiceError(c, err, "QR_CODE_ERROR", "Failed to generate QR code")
		return
	}

	respondData(c, http.StatusOK, memorial)
}
