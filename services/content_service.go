package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentKind names a collection of memorial content in URLs
type ContentKind string

const (
	ContentPhotos        ContentKind = "photos"
	ContentVideos        ContentKind = "videos"
	ContentMusic         ContentKind = "music"
	ContentStories       ContentKind = "stories"
	ContentMessages      ContentKind = "messages"
	ContentMilestones    ContentKind = "milestones"
	ContentFamilyMembers ContentKind = "family-members"
)

// ParseContentKind validates a kind taken from a URL
func ParseContentKind(s string) (ContentKind, bool) {
	switch kind := ContentKind(s); kind {
	case ContentPhotos, ContentVideos, ContentMusic, ContentStories, ContentMessages, ContentMilestones, ContentFamilyMembers:
		return kind, true
	}
	return "", false
}

// MediaDetails are the optional fields sent with an upload
type MediaDetails struct {
	Caption    string
	Title      string
	Artist     string
	UploadedBy string
}

// StoryInput is a visitor submitted story
type StoryInput struct {
	Title      string `json:"title"`
	Content    string `json:"content" binding:"required"`
	AuthorName string `json:"author_name" binding:"required"`
}

// MessageInput is a visitor condolence
type MessageInput struct {
	AuthorName string `json:"author_name" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// MilestoneInput is a timeline entry
type MilestoneInput struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
	AuthorName  string     `json:"author_name"`
}

// FamilyMemberInput is a relative listed on the memorial
type FamilyMemberInput struct {
	Name         string `json:"name" binding:"required"`
	Relationship string `json:"relationship" binding:"required"`
	AuthorName   string `json:"author_name"`
}

// ContentCounts is the number of rows of each kind attached to a memorial
type ContentCounts struct {
	Photos        int64 `json:"photos"`
	Videos        int64 `json:"videos"`
	Music         int64 `json:"music"`
	Stories       int64 `json:"stories"`
	Messages      int64 `json:"messages"`
	Milestones    int64 `json:"milestones"`
	FamilyMembers int64 `json:"family_members"`
}

// Total sums every kind
func (c ContentCounts) Total() int64 {
	return c.Photos + c.Videos + c.Music + c.Stories + c.Messages + c.Milestones + c.FamilyMembers
}

// MemorialOverview is a memorial with all of its content
type MemorialOverview struct {
	Memorial      *models.Memorial      `json:"memorial"`
	Photos        []models.Photo        `json:"photos"`
	Videos        []models.Video        `json:"videos"`
	Music         []models.Music        `json:"music"`
	Stories       []models.Story        `json:"stories"`
	Messages      []models.Message      `json:"messages"`
	Milestones    []models.Milestone    `json:"milestones"`
	FamilyMembers []models.FamilyMember `json:"family_members"`
	Counts        ContentCounts         `json:"counts"`
}

// ContentService manages the child content of memorials. Anyone may add content;
// only the memorial owner may remove it or approve stories.
type ContentService struct {
	db        *gorm.DB
	blobs     BlobStore
	memorials *MemorialProvisioner
	catalog   *Catalog
}

// NewContentService creates a content service
func NewContentService(db *gorm.DB, blobs BlobStore, memorials *MemorialProvisioner, catalog *Catalog) *ContentService {
	return &ContentService{
		db:        db,
		blobs:     blobs,
		memorials: memorials,
		catalog:   catalog,
	}
}

// UploadPhoto stores an image for the memorial identified by slug or UUID
func (s *ContentService) UploadPhoto(ctx context.Context, identifier string, file *multipart.FileHeader, details MediaDetails) (*models.Photo, error) {
	memorial, url, err := s.storeMedia(ctx, identifier, file, utils.MediaPhoto, ContentPhotos)
	if err != nil {
		return nil, err
	}
	photo := &models.Photo{MemorialID: memorial.ID, URL: url, Caption: details.Caption, UploadedBy: details.UploadedBy}
	if err := s.insertMedia(ctx, memorial.ID, ContentPhotos, photo, url); err != nil {
		return nil, err
	}
	return photo, nil
}

// UploadVideo stores a video clip for the memorial
func (s *ContentService) UploadVideo(ctx context.Context, identifier string, file *multipart.FileHeader, details MediaDetails) (*models.Video, error) {
	memorial, url, err := s.storeMedia(ctx, identifier, file, utils.MediaVideo, ContentVideos)
	if err != nil {
		return nil, err
	}
	video := &models.Video{MemorialID: memorial.ID, URL: url, Title: details.Title, UploadedBy: details.UploadedBy}
	if err := s.insertMedia(ctx, memorial.ID, ContentVideos, video, url); err != nil {
		return nil, err
	}
	return video, nil
}

// UploadMusic stores an audio track for the memorial
func (s *ContentService) UploadMusic(ctx context.Context, identifier string, file *multipart.FileHeader, details MediaDetails) (*models.Music, error) {
	memorial, url, err := s.storeMedia(ctx, identifier, file, utils.MediaAudio, ContentMusic)
	if err != nil {
		return nil, err
	}
	track := &models.Music{MemorialID: memorial.ID, URL: url, Title: details.Title, Artist: details.Artist, UploadedBy: details.UploadedBy}
	if err := s.insertMedia(ctx, memorial.ID, ContentMusic, track, url); err != nil {
		return nil, err
	}
	return track, nil
}

// storeMedia resolves the memorial, validates the file and writes it to blob storage, in
// that order, so uploads against a missing memorial never reach storage
func (s *ContentService) storeMedia(ctx context.Context, identifier string, file *multipart.FileHeader, media utils.MediaKind, kind ContentKind) (*models.Memorial, string, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, "", err
	}

	contentType, err := utils.ValidateMediaFile(file, media)
	if err != nil {
		return nil, "", err
	}

	if err := s.checkLimit(s.db.WithContext(ctx), memorial.ID, kind); err != nil {
		return nil, "", err
	}

	data, err := utils.ReadUploadedFile(file)
	if err != nil {
		return nil, "", err
	}

	key := fmt.Sprintf("memorials/%s/%s/%d-%s", memorial.ID, kind, time.Now().UnixNano(), utils.SafeFilename(file.Filename))
	url, err := s.blobs.Put(ctx, key, data, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store %s: %w", kind, err)
	}
	return memorial, url, nil
}

// insertMedia creates the row for an uploaded blob, removing the blob if the insert fails.
// The package limit is checked again with the memorial row locked so concurrent uploads
// cannot both take the last slot.
func (s *ContentService) insertMedia(ctx context.Context, memorialID uuid.UUID, kind ContentKind, row interface{}, url string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var memorial models.Memorial
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", memorialID).
			First(&memorial).Error; err != nil {
			if isNotFound(err) {
				return ErrMemorialNotFound
			}
			return err
		}
		if err := s.checkLimit(tx, memorialID, kind); err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, url); delErr != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", url, delErr)
		}
		if errors.Is(err, ErrContentLimitReached) || errors.Is(err, ErrMemorialNotFound) {
			return err
		}
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}

// checkLimit enforces the media allowance of the package bought for the memorial.
// Memorials without a linked order are not limited.
func (s *ContentService) checkLimit(tx *gorm.DB, memorialID uuid.UUID, kind ContentKind) error {
	var order models.Order
	err := tx.
		Where("memorial_id = ? AND payment_status = ?", memorialID, models.PaymentStatusCompleted).
		Order("id ASC").
		First(&order).Error
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pkg, ok := s.catalog.Package(order.PackageID)
	if !ok {
		return nil
	}

	var limit int
	var model interface{}
	switch kind {
	case ContentPhotos:
		limit, model = pkg.Photos, &models.Photo{}
	case ContentVideos:
		limit, model = pkg.Videos, &models.Video{}
	case ContentMusic:
		limit, model = pkg.MusicTracks, &models.Music{}
	default:
		return nil
	}

	var count int64
	if err := tx.Model(model).Where("memorial_id = ?", memorialID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(limit) {
		return fmt.Errorf("%w: %s package allows %d %s", ErrContentLimitReached, pkg.Name, limit, kind)
	}
	return nil
}

// AddStory stores a story; it stays hidden from the public page until approved
func (s *ContentService) AddStory(ctx context.Context, identifier string, input StoryInput) (*models.Story, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireText("content", input.Content); err != nil {
		return nil, err
	}
	if err := requireText("author_name", input.AuthorName); err != nil {
		return nil, err
	}

	story := &models.Story{
		MemorialID: memorial.ID,
		Title:      strings.TrimSpace(input.Title),
		Content:    strings.TrimSpace(input.Content),
		AuthorName: strings.TrimSpace(input.AuthorName),
		IsApproved: false,
	}
	if err := s.db.WithContext(ctx).Create(story).Error; err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}
	return story, nil
}

// AddMessage stores a condolence message
func (s *ContentService) AddMessage(ctx context.Context, identifier string, input MessageInput) (*models.Message, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireText("author_name", input.AuthorName); err != nil {
		return nil, err
	}
	if err := requireText("content", input.Content); err != nil {
		return nil, err
	}

	message := &models.Message{
		MemorialID: memorial.ID,
		AuthorName: strings.TrimSpace(input.AuthorName),
		Content:    strings.TrimSpace(input.Content),
	}
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return message, nil
}

// AddMilestone stores a timeline entry
func (s *ContentService) AddMilestone(ctx context.Context, identifier string, input MilestoneInput) (*models.Milestone, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireText("title", input.Title); err != nil {
		return nil, err
	}

	milestone := &models.Milestone{
		MemorialID:  memorial.ID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Date:        input.Date,
		AuthorName:  strings.TrimSpace(input.AuthorName),
	}
	if err := s.db.WithContext(ctx).Create(milestone).Error; err != nil {
		return nil, fmt.Errorf("failed to save milestone: %w", err)
	}
	return milestone, nil
}

// AddFamilyMember stores a relative
func (s *ContentService) AddFamilyMember(ctx context.Context, identifier string, input FamilyMemberInput) (*models.FamilyMember, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if err := requireText("name", input.Name); err != nil {
		return nil, err
	}
	if err := requireText("relationship", input.Relationship); err != nil {
		return nil, err
	}

	member := &models.FamilyMember{
		MemorialID:   memorial.ID,
		Name:         strings.TrimSpace(input.Name),
		Relationship: strings.TrimSpace(input.Relationship),
		AuthorName:   strings.TrimSpace(input.AuthorName),
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		return nil, fmt.Errorf("failed to save family member: %w", err)
	}
	return member, nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// List returns the content of one kind for a memorial. Unapproved stories are only
// included for the owner.
func (s *ContentService) List(ctx context.Context, identifier string, kind ContentKind, includeUnapproved bool) (interface{}, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	switch kind {
	case ContentPhotos:
		return listContent[models.Photo](db, memorial.ID)
	case ContentVideos:
		return listContent[models.Video](db, memorial.ID)
	case ContentMusic:
		return listContent[models.Music](db, memorial.ID)
	case ContentStories:
		return listStories(db, memorial.ID, includeUnapproved)
	case ContentMessages:
		return listContent[models.Message](db, memorial.ID)
	case ContentMilestones:
		return listContent[models.Milestone](db, memorial.ID)
	case ContentFamilyMembers:
		return listContent[models.FamilyMember](db, memorial.ID)
	}
	return nil, fmt.Errorf("unknown content kind %q", kind)
}

func listContent[T models.MemorialContent](db *gorm.DB, memorialID uuid.UUID) ([]T, error) {
	rows := []T{}
	if err := db.Where("memorial_id = ?", memorialID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func listStories(db *gorm.DB, memorialID uuid.UUID, includeUnapproved bool) ([]models.Story, error) {
	query := db.Where("memorial_id = ?", memorialID)
	if !includeUnapproved {
		query = query.Where("is_approved = ?", true)
	}
	stories := []models.Story{}
	if err := query.Order("created_at ASC, id ASC").Find(&stories).Error; err != nil {
		return nil, err
	}
	return stories, nil
}

// Delete removes a content row. Only the memorial owner may delete; stored media is
// removed from blob storage on a best-effort basis.
func (s *ContentService) Delete(ctx context.Context, identifier string, kind ContentKind, contentID uint, userID string) error {
	memorial, err := s.memorials.ResolveOwned(ctx, identifier, userID)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	var blobURL string
	switch kind {
	case ContentPhotos:
		row, err := deleteContent[models.Photo](db, memorial.ID, contentID)
		if err != nil {
			return err
		}
		blobURL = row.URL
	case ContentVideos:
		row, err := deleteContent[models.Video](db, memorial.ID, contentID)
		if err != nil {
			return err
		}
		blobURL = row.URL
	case ContentMusic:
		row, err := deleteContent[models.Music](db, memorial.ID, contentID)
		if err != nil {
			return err
		}
		blobURL = row.URL
	case ContentStories:
		_, err = deleteContent[models.Story](db, memorial.ID, contentID)
	case ContentMessages:
		_, err = deleteContent[models.Message](db, memorial.ID, contentID)
	case ContentMilestones:
		_, err = deleteContent[models.Milestone](db, memorial.ID, contentID)
	case ContentFamilyMembers:
		_, err = deleteContent[models.FamilyMember](db, memorial.ID, contentID)
	default:
		return fmt.Errorf("unknown content kind %q", kind)
	}
	if err != nil {
		return err
	}

	if blobURL != "" {
		if err := s.blobs.Delete(ctx, blobURL); err != nil {
			log.Printf("Failed to delete %s blob %s for memorial %s: %v", kind, blobURL, memorial.ID, err)
		}
	}
	return nil
}

func deleteContent[T models.MemorialContent](db *gorm.DB, memorialID uuid.UUID, id uint) (*T, error) {
	var row T
	if err := db.Where("id = ? AND memorial_id = ?", id, memorialID).First(&row).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if err := db.Where("id = ? AND memorial_id = ?", id, memorialID).Delete(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to delete content: %w", err)
	}
	return &row, nil
}

// ApproveStory makes a story visible on the public page
func (s *ContentService) ApproveStory(ctx context.Context, identifier string, storyID uint, userID string) (*models.Story, error) {
	memorial, err := s.memorials.ResolveOwned(ctx, identifier, userID)
	if err != nil {
		return nil, err
	}

	var story models.Story
	db := s.db.WithContext(ctx)
	if err := db.Where("id = ? AND memorial_id = ?", storyID, memorial.ID).First(&story).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if err := db.Model(&story).Update("is_approved", true).Error; err != nil {
		return nil, fmt.Errorf("failed to approve story: %w", err)
	}
	story.IsApproved = true
	return &story, nil
}

// PublicOverview loads a memorial with its public content
func (s *ContentService) PublicOverview(ctx context.Context, identifier string) (*MemorialOverview, error) {
	memorial, err := s.memorials.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, memorial, false)
}

// Dashboard loads everything the owner manages, including unapproved stories
func (s *ContentService) Dashboard(ctx context.Context, identifier, userID string) (*MemorialOverview, error) {
	memorial, err := s.memorials.ResolveOwned(ctx, identifier, userID)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, memorial, true)
}

// overview fans the per-kind queries out concurrently
func (s *ContentService) overview(ctx context.Context, memorial *models.Memorial, includeUnapproved bool) (*MemorialOverview, error) {
	g, gctx := errgroup.WithContext(ctx)
	db := s.db.WithContext(gctx)
	out := &MemorialOverview{Memorial: memorial}

	g.Go(func() (err error) {
		out.Photos, err = listContent[models.Photo](db, memorial.ID)
		return err
	})
	g.Go(func() (err error) {
		out.Videos, err = listContent[models.Video](db, memorial.ID)
		return err
	})
	g.Go(func() (err error) {
		out.Music, err = listContent[models.Music](db, memorial.ID)
		return err
	})
	g.Go(func() (err error) {
		out.Stories, err = listStories(db, memorial.ID, includeUnapproved)
		return err
	})
	g.Go(func() (err error) {
		out.Messages, err = listContent[models.Message](db, memorial.ID)
		return err
	})
	g.Go(func() (err error) {
		out.Milestones, err = listContent[models.Milestone](db, memorial.ID)
		return err
	})
	g.Go(func() (err error) {
		out.FamilyMembers, err = listContent[models.FamilyMember](db, memorial.ID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load memorial content: %w", err)
	}

	out.Counts = ContentCounts{
		Photos:        int64(len(out.Photos)),
		Videos:        int64(len(out.Videos)),
		Music:         int64(len(out.Music)),
		Stories:       int64(len(out.Stories)),
		Messages:      int64(len(out.Messages)),
		Milestones:    int64(len(out.Milestones)),
		FamilyMembers: int64(len(out.FamilyMembers)),
	}
	return out, nil
}

// countContent counts every kind of content attached to a memorial
func countContent(db *gorm.DB, memorialID uuid.UUID) (ContentCounts, error) {
	var counts ContentCounts
	targets := []struct {
		model interface{}
		dest  *int64
	}{
		{&models.Photo{}, &counts.Photos},
		{&models.Video{}, &counts.Videos},
		{&models.Music{}, &counts.Music},
		{&models.Story{}, &counts.Stories},
		{&models.Message{}, &counts.Messages},
		{&models.Milestone{}, &counts.Milestones},
		{&models.FamilyMember{}, &counts.FamilyMembers},
	}
	for _, t := range targets {
		if err := db.Model(t.model).Where("memorial_id = ?", memorialID).Count(t.dest).Error; err != nil {
			return ContentCounts{}, fmt.Errorf("failed to count memorial content: %w", err)
		}
	}
	return counts, nil
}
