package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memorialqr/memorial-qr-api/models"
	"github.com/memorialqr/memorial-qr-api/utils"
	"gorm.io/gorm"
)

const maxSlugAttempts = 3

// CreateMemorialInput describes a new memorial. OwnerID is set from the authenticated
// caller; NotifyEmail receives the welcome email when present.
type CreateMemorialInput struct {
	FirstName   string     `json:"first_name" binding:"required"`
	LastName    string     `json:"last_name" binding:"required"`
	BirthDate   *time.Time `json:"birth_date"`
	DeathDate   *time.Time `json:"death_date"`
	Biography   string     `json:"biography"`
	Location    string     `json:"location"`
	OrderNumber string     `json:"order_number"`
	NotifyEmail string     `json:"email"`
	OwnerID     *string    `json:"-"`
}

// UpdateMemorialInput is a partial update; nil fields are left untouched. The slug never changes.
type UpdateMemorialInput struct {
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	BirthDate *time.Time `json:"birth_date"`
	DeathDate *time.Time `json:"death_date"`
	Biography *string    `json:"biography"`
	Location  *string    `json:"location"`
}

// MemorialProvisioner creates memorials and their QR codes
type MemorialProvisioner struct {
	db       *gorm.DB
	blobs    BlobStore
	qr       QRGenerator
	orders   *OrderStore
	notifier Notifier
	siteURL  string
	now      func() time.Time
}

// NewMemorialProvisioner creates a memorial provisioner
func NewMemorialProvisioner(db *gorm.DB, blobs BlobStore, qr QRGenerator, orders *OrderStore, notifier Notifier, siteURL string) *MemorialProvisioner {
	return &MemorialProvisioner{
		db:       db,
		blobs:    blobs,
		qr:       qr,
		orders:   orders,
		notifier: notifier,
		siteURL:  siteURL,
		now:      time.Now,
	}
}

// PublicURL is the page a memorial's QR code points at
func (p *MemorialProvisioner) PublicURL(slug string) string {
	return fmt.Sprintf("%s/memorial/%s", p.siteURL, slug)
}

// DashboardURL is the owner's management page for a memorial
func (p *MemorialProvisioner) DashboardURL(slug string) string {
	return fmt.Sprintf("%s/dashboard/memorials/%s", p.siteURL, slug)
}

// CreateMemorial inserts the memorial, then generates its QR code and sends the welcome
// email. Only the insert can fail the call; the follow-up steps are logged on failure.
func (p *MemorialProvisioner) CreateMemorial(ctx context.Context, input CreateMemorialInput) (*models.Memorial, error) {
	var order *models.Order
	if input.OrderNumber != "" {
		var err error
		order, err = p.orders.GetOrderByNumber(ctx, input.OrderNumber)
		if err != nil {
			return nil, err
		}
		if order.MemorialID != nil {
			return nil, ErrOrderAlreadyLinked
		}
		if input.NotifyEmail == "" {
			input.NotifyEmail = order.CustomerEmail
		}
	}

	memorial, err := p.insertMemorial(ctx, input)
	if err != nil {
		return nil, err
	}

	if order != nil {
		if err := p.orders.LinkOrderToMemorial(ctx, order.ID, memorial.ID); err != nil {
			log.Printf("Failed to link order %s to memorial %s: %v", order.OrderNumber, memorial.ID, err)
		}
	}

	p.finish(ctx, memorial, input.NotifyEmail)
	return memorial, nil
}

// ProvisionForOrder creates and links the memorial for a paid order. An order that is
// already linked returns its existing memorial.
func (p *MemorialProvisioner) ProvisionForOrder(ctx context.Context, order *models.Order, firstName, lastName string) (*models.Memorial, error) {
	if order.MemorialID != nil {
		return p.Resolve(ctx, order.MemorialID.String())
	}

	memorial, err := p.insertMemorial(ctx, CreateMemorialInput{FirstName: firstName, LastName: lastName})
	if err != nil {
		return nil, err
	}

	if err := p.orders.LinkOrderToMemorial(ctx, order.ID, memorial.ID); err != nil {
		return nil, fmt.Errorf("failed to link order %s: %w", order.OrderNumber, err)
	}
	order.MemorialID = &memorial.ID

	p.finish(ctx, memorial, order.CustomerEmail)
	return memorial, nil
}

func (p *MemorialProvisioner) insertMemorial(ctx context.Context, input CreateMemorialInput) (*models.Memorial, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" {
		return nil, &ValidationError{Field: "first_name", Message: "is required"}
	}
	if lastName == "" {
		return nil, &ValidationError{Field: "last_name", Message: "is required"}
	}

	createdAt := p.now()
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := utils.MemorialSlug(firstName, lastName, createdAt.Add(time.Duration(attempt)*time.Millisecond))
		if slug == "" {
			return nil, &ValidationError{Field: "first_name", Message: "must contain letters or digits"}
		}

		memorial := &models.Memorial{
			Slug:      slug,
			FirstName: firstName,
			LastName:  lastName,
			FullName:  firstName + " " + lastName,
			BirthDate: input.BirthDate,
			DeathDate: input.DeathDate,
			Biography: input.Biography,
			Location:  input.Location,
			OwnerID:   input.OwnerID,
		}

		err := p.db.WithContext(ctx).Create(memorial).Error
		if err == nil {
			log.Printf("Created memorial %s (%s)", memorial.ID, memorial.Slug)
			return memorial, nil
		}
		if !isDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to create memorial: %w", err)
		}
		log.Printf("Memorial slug %s already taken, retrying", slug)
	}

	return nil, fmt.Errorf("failed to allocate a unique memorial slug after %d attempts", maxSlugAttempts)
}

func (p *MemorialProvisioner) finish(ctx context.Context, memorial *models.Memorial, email string) {
	if _, err := p.ProvisionQRCode(ctx, memorial); err != nil {
		log.Printf("QR code generation failed for memorial %s: %v", memorial.ID, err)
	}
	if email != "" {
		p.notifier.Enqueue(WelcomeEmail(email, memorial, p.PublicURL(memorial.Slug), p.DashboardURL(memorial.Slug)))
	}
}

// ProvisionQRCode renders the memorial's QR code, stores it and records the URL on the
// memorial and on any pending placeholder of a linked order. Running it again overwrites
// the same object.
func (p *MemorialProvisioner) ProvisionQRCode(ctx context.Context, memorial *models.Memorial) (*models.Memorial, error) {
	png, err := p.qr.Generate(p.PublicURL(memorial.Slug))
	if err != nil {
		return nil, err
	}

	url, err := p.blobs.Put(ctx, qrCodeKey(memorial.Slug), png, "image/png")
	if err != nil {
		return nil, fmt.Errorf("failed to upload qr code: %w", err)
	}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(memorial).Update("qr_code_url", url).Error; err != nil {
			return err
		}
		linkedOrders := tx.Model(&models.Order{}).Select("id").Where("memorial_id = ?", memorial.ID)
		return tx.Model(&models.QRCode{}).
			Where("order_id IN (?)", linkedOrders).
			Updates(map[string]interface{}{
				"memorial_id": memorial.ID,
				"image_url":   url,
				"status":      models.QRCodeStatusGenerated,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record qr code: %w", err)
	}

	memorial.QRCodeURL = &url
	return memorial, nil
}

func qrCodeKey(slug string) string {
	return "qr-codes/" + slug + ".png"
}

// Resolve finds a memorial by UUID or by slug
func (p *MemorialProvisioner) Resolve(ctx context.Context, identifier string) (*models.Memorial, error) {
	return resolveMemorial(p.db.WithContext(ctx), identifier)
}

func resolveMemorial(db *gorm.DB, identifier string) (*models.Memorial, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrMemorialNotFound
	}

	var query *gorm.DB
	if id, err := uuid.Parse(identifier); err == nil {
		query = db.Where("id = ?", id)
	} else {
		query = db.Where("slug = ?", identifier)
	}

	var memorial models.Memorial
	if err := query.First(&memorial).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrMemorialNotFound
		}
		return nil, err
	}
	return &memorial, nil
}

// ResolveOwned resolves a memorial and checks that userID owns it
func (p *MemorialProvisioner) ResolveOwned(ctx context.Context, identifier, userID string) (*models.Memorial, error) {
	memorial, err := p.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !memorial.IsOwnedBy(userID) {
		return nil, ErrNotMemorialOwner
	}
	return memorial, nil
}

// Claim assigns an unowned memorial to userID. Claiming one's own memorial again succeeds.
func (p *MemorialProvisioner) Claim(ctx context.Context, identifier, userID string) (*models.Memorial, error) {
	memorial, err := p.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}

	result := p.db.WithContext(ctx).Model(&models.Memorial{}).
		Where("id = ? AND owner_id IS NULL", memorial.ID).
		Update("owner_id", userID)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim memorial: %w", result.Error)
	}

	memorial, err = p.Resolve(ctx, memorial.ID.String())
	if err != nil {
		return nil, err
	}
	if !memorial.IsOwnedBy(userID) {
		return nil, ErrMemorialAlreadyOwned
	}
	return memorial, nil
}

// Update applies an owner's edits
func (p *MemorialProvisioner) Update(ctx context.Context, identifier, userID string, input UpdateMemorialInput) (*models.Memorial, error) {
	memorial, err := p.ResolveOwned(ctx, identifier, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	firstName, lastName := memorial.FirstName, memorial.LastName
	if input.FirstName != nil {
		if firstName = strings.TrimSpace(*input.FirstName); firstName == "" {
			return nil, &ValidationError{Field: "first_name", Message: "must not be empty"}
		}
		updates["first_name"] = firstName
	}
	if input.LastName != nil {
		if lastName = strings.TrimSpace(*input.LastName); lastName == "" {
			return nil, &ValidationError{Field: "last_name", Message: "must not be empty"}
		}
		updates["last_name"] = lastName
	}
	if input.FirstName != nil || input.LastName != nil {
		updates["full_name"] = firstName + " " + lastName
	}
	if input.BirthDate != nil {
		updates["birth_date"] = *input.BirthDate
	}
	if input.DeathDate != nil {
		updates["death_date"] = *input.DeathDate
	}
	if input.Biography != nil {
		updates["biography"] = *input.Biography
	}
	if input.Location != nil {
		updates["location"] = *input.Location
	}

	if len(updates) > 0 {
		if err := p.db.WithContext(ctx).Model(memorial).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update memorial: %w", err)
		}
	}
	return p.Resolve(ctx, memorial.ID.String())
}

// Delete removes an owner's memorial. Memorials that still have content are refused;
// content has to be deleted first.
func (p *MemorialProvisioner) Delete(ctx context.Context, identifier, userID string) error {
	memorial, err := p.ResolveOwned(ctx, identifier, userID)
	if err != nil {
		return err
	}

	counts, err := countContent(p.db.WithContext(ctx), memorial.ID)
	if err != nil {
		return err
	}
	if counts.Total() > 0 {
		return ErrMemorialHasContent
	}

	if err := p.db.WithContext(ctx).Delete(memorial).Error; err != nil {
		return fmt.Errorf("failed to delete memorial: %w", err)
	}

	if memorial.QRCodeURL != nil {
		if err := p.blobs.Delete(ctx, *memorial.QRCodeURL); err != nil {
			log.Printf("Failed to delete qr code for memorial %s: %v", memorial.ID, err)
		}
	}
	return nil
}

// ListOwned returns the memorials owned by userID, newest first
func (p *MemorialProvisioner) ListOwned(ctx context.Context, userID string) ([]models.Memorial, error) {
	var memorials []models.Memorial
	if err := p.db.WithContext(ctx).Where("owner_id = ?", userID).Order("created_at DESC").Find(&memorials).Error; err != nil {
		return nil, err
	}
	return memorials, nil
}
