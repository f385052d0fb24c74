package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment statuses. Transitions only move forward: pending -> completed or pending -> failed.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Fulfillment statuses
const (
	OrderStatusProcessing           = "processing"
	OrderStatusShipped              = "shipped"
	OrderStatusDelivered            = "delivered"
	OrderStatusCanceled             = "canceled"
	OrderStatusSubscriptionCanceled = "subscription_canceled"
)

// Payment providers
const (
	ProviderStripe = "stripe"
	ProviderSquare = "square"
	ProviderManual = "manual"
)

// ShippingAddress is embedded into orders with a shipping_ column prefix
type ShippingAddress struct {
	Line1   string `gorm:"not null" json:"line1"`
	Line2   string `json:"line2"`
	City    string `gorm:"not null" json:"city"`
	State   string `gorm:"not null" json:"state"`
	Zip     string `gorm:"not null" json:"zip"`
	Country string `gorm:"not null;default:'US'" json:"country"`
}

// Customization holds the plaque options chosen at checkout
type Customization struct {
	PlaqueColor      string `json:"plaque_color"`
	Personalization  string `gorm:"type:text" json:"personalization"`
	AddonExtraPlaque bool   `gorm:"not null;default:false" json:"addon_extra_plaque"`
	AddonWoodenStand bool   `gorm:"not null;default:false" json:"addon_wooden_stand"`
	AddonGiftBox     bool   `gorm:"not null;default:false" json:"addon_gift_box"`
}

// Order represents a single purchase transaction
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerName    string          `gorm:"not null" json:"customer_name"`
	CustomerEmail   string          `gorm:"not null;index" json:"customer_email"`
	CustomerPhone   string          `json:"customer_phone"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	PaymentProvider string          `gorm:"not null;default:'manual'" json:"payment_provider"`
	PaymentID       *string         `gorm:"index" json:"payment_id"`
	StripeSessionID *string         `gorm:"uniqueIndex" json:"stripe_session_id,omitempty"` // unique so replayed sessions cannot create a second order
	SubscriptionID  *string         `gorm:"index" json:"subscription_id,omitempty"`
	PaymentStatus   string          `gorm:"not null;default:'pending'" json:"payment_status"`
	AmountCents     int64           `gorm:"not null;check:amount_cents >= 0" json:"amount_cents"`
	ProductType     string          `gorm:"not null" json:"product_type"`
	ProductName     string          `gorm:"not null" json:"product_name"`
	PackageID       string          `json:"package_id"`
	Quantity        int             `gorm:"not null;default:1;check:quantity > 0" json:"quantity"`
	Customization   Customization   `gorm:"embedded" json:"customization"`
	Status          string          `gorm:"not null;default:'processing'" json:"status"`
	AdminNotes      *string         `gorm:"type:text" json:"admin_notes,omitempty"`
	MemorialID      *uuid.UUID      `gorm:"type:uuid;index" json:"memorial_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// SubscriptionPayment is an audit row for every charge attempt against a subscription-linked order
type SubscriptionPayment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"not null;index" json:"order_id"`
	SubscriptionID string    `gorm:"not null;uniqueIndex:idx_subscription_invoice_status" json:"subscription_id"`
	InvoiceID      string    `gorm:"not null;uniqueIndex:idx_subscription_invoice_status" json:"invoice_id"`
	Status         string    `gorm:"not null;uniqueIndex:idx_subscription_invoice_status" json:"status"`
	AmountCents    int64     `gorm:"not null;default:0" json:"amount_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for the SubscriptionPayment model
func (SubscriptionPayment) TableName() string {
	return "subscription_payments"
}

// QR code placeholder statuses
const (
	QRCodeStatusPending   = "pending"
	QRCodeStatusGenerated = "generated"
)

// QRCode is created as a placeholder when a paid order arrives and filled in once
// the memorial for that order has been provisioned
type QRCode struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	OrderID    uint       `gorm:"not null;uniqueIndex" json:"order_id"`
	MemorialID *uuid.UUID `gorm:"type:uuid;index" json:"memorial_id"`
	ImageURL   *string    `json:"image_url"`
	Status     string     `gorm:"not null;default:'pending'" json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the QRCode model
func (QRCode) TableName() string {
	return "qr_codes"
}
