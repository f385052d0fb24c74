package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/memorialqr/memorial-qr-api/services"
)

// ContentController serves the photos, videos, music, stories, messages, milestones and
// family members attached to a memorial
type ContentController struct {
	content *services.ContentService
}

// NewContentController creates a content controller
func NewContentController(content *services.ContentService) *ContentController {
	return &ContentController{content: content}
}

// UploadMedia handles POST /api/v1/memorials/:identifier/{photos,videos,music}
func (cc *ContentController) UploadMedia(kind services.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "MISSING_FILE", "A file is required in the 'file' form field")
			return
		}

		details := services.MediaDetails{
			Caption:    c.PostForm("caption"),
			Title:      c.PostForm("title"),
			Artist:     c.PostForm("artist"),
			UploadedBy: c.PostForm("uploaded_by"),
		}

		ctx := c.Request.Context()
		identifier := c.Param("identifier")

		var row interface{}
		switch kind {
		case services.ContentPhotos:
			row, err = cc.content.UploadPhoto(ctx, identifier, file, details)
		case services.ContentVideos:
			row, err = cc.content.UploadVideo(ctx, identifier, file, details)
		case services.ContentMusic:
			row, err = cc.content.UploadMusic(ctx, identifier, file, details)
		default:
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Unsupported content type")
			return
		}
		if err != nil {
			respondServiceError(c, err, "UPLOAD_ERROR", "Failed to upload file")
			return
		}

		respondData(c, http.StatusCreated, row)
	}
}

// AddStory handles POST /api/v1/memorials/:identifier/stories. Stories wait for owner approval.
func (cc *ContentController) AddStory(c *gin.Context) {
	var req services.StoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	story, err := cc.content.AddStory(c.Request.Context(), c.Param("identifier"), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to add story")
		return
	}

	respondData(c, http.StatusCreated, story)
}

// AddMessage handles POST /api/v1/memorials/:identifier/messages
func (cc *ContentController) AddMessage(c *gin.Context) {
	var req services.MessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	message, err := cc.content.AddMessage(c.Request.Context(), c.Param("identifier"), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to add message")
		return
	}

	respondData(c, http.StatusCreated, message)
}

// AddMilestone handles POST /api/v1/memorials/:identifier/milestones
func (cc *ContentController) AddMilestone(c *gin.Context) {
	var req services.MilestoneInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	milestone, err := cc.content.AddMilestone(c.Request.Context(), c.Param("identifier"), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to add milestone")
		return
	}

	respondData(c, http.StatusCreated, milestone)
}

// AddFamilyMember handles POST /api/v1/memorials/:identifier/family-members
func (cc *ContentController) AddFamilyMember(c *gin.Context) {
	var req services.FamilyMemberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	member, err := cc.content.AddFamilyMember(c.Request.Context(), c.Param("identifier"), req)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to add family member")
		return
	}

	respondData(c, http.StatusCreated, member)
}

// ListContent handles GET /api/v1/memorials/:identifier/<kind>. Only approved stories are listed.
func (cc *ContentController) ListContent(kind services.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := cc.content.List(c.Request.Context(), c.Param("identifier"), kind, false)
		if err != nil {
			respondServiceError(c, err, "DATABASE_ERROR", "Failed to fetch content")
			return
		}

		respondData(c, http.StatusOK, rows)
	}
}

// DeleteContent handles DELETE /api/v1/memorials/:identifier/<kind>/:id (owner only)
func (cc *ContentController) DeleteContent(kind services.ContentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		contentID, ok := uintParam(c, "id")
		if !ok {
			return
		}

		if err := cc.content.Delete(c.Request.Context(), c.Param("identifier"), kind, contentID, userID); err != nil {
			respondServiceError(c, err, "DATABASE_ERROR", "Failed to delete content")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Content deleted",
		})
	}
}

// ApproveStory handles PATCH /api/v1/memorials/:identifier/stories/:id/approve (owner only)
func (cc *ContentController) ApproveStory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	storyID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	story, err := cc.content.ApproveStory(c.Request.Context(), c.Param("identifier"), storyID, userID)
	if err != nil {
		respondServiceError(c, err, "DATABASE_ERROR", "Failed to approve story")
		return
	}

	respondData(c, http.StatusOK, story)
}
