package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/memorialqr/memorial-qr-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	orderNumberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	orderSuffixLength   = 7
	maxOrderNumberTries = 3
	defaultCountry      = "US"
)

var validOrderStatuses = map[string]bool{
	models.OrderStatusProcessing:           true,
	models.OrderStatusShipped:              true,
	models.OrderStatusDelivered:            true,
	models.OrderStatusCanceled:             true,
	models.OrderStatusSubscriptionCanceled: true,
}

// CreateOrderInput carries everything needed to record a purchase
type CreateOrderInput struct {
	CustomerName    string                 `json:"customer_name" binding:"required"`
	CustomerEmail   string                 `json:"customer_email" binding:"required,email"`
	CustomerPhone   string                 `json:"customer_phone"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentProvider string                 `json:"payment_provider"`
	PaymentID       *string                `json:"payment_id"`
	StripeSessionID *string                `json:"-"`
	SubscriptionID  *string                `json:"-"`
	AmountCents     int64                  `json:"amount_cents" binding:"gte=0"`
	ProductType     string                 `json:"product_type" binding:"required"`
	ProductName     string                 `json:"product_name" binding:"required"`
	PackageID       string                 `json:"package_id"`
	Quantity        int                    `json:"quantity"`
	Customization   models.Customization   `json:"customization"`
}

// OrderUpdate is a partial admin update; nil fields are left untouched
type OrderUpdate struct {
	Status     *string `json:"status"`
	AdminNotes *string `json:"admin_notes"`
}

// OrderStore persists orders and owns their payment state transitions
type OrderStore struct {
	db         *gorm.DB
	notifier   Notifier
	siteURL    string
	adminEmail string
	now        func() time.Time
}

// NewOrderStore creates an order store
func NewOrderStore(db *gorm.DB, notifier Notifier, siteURL, adminEmail string) *OrderStore {
	return &OrderStore{
		db:         db,
		notifier:   notifier,
		siteURL:    siteURL,
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// CreateOrder records an order and queues the confirmation and admin emails.
// Payment status is completed when a payment reference is supplied and pending otherwise.
func (s *OrderStore) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	order, err := s.insertOrder(s.db.WithContext(ctx), input)
	if err != nil {
		return nil, err
	}
	s.notifyOrderCreated(order)
	return order, nil
}

// insertOrder writes the order row with tx. Callers running inside a transaction pass
// it here and send notifications themselves after commit.
func (s *OrderStore) insertOrder(tx *gorm.DB, input CreateOrderInput) (*models.Order, error) {
	if err := validateOrderInput(input); err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		CustomerPhone:   input.CustomerPhone,
		ShippingAddress: input.ShippingAddress,
		PaymentProvider: input.PaymentProvider,
		PaymentID:       input.PaymentID,
		StripeSessionID: input.StripeSessionID,
		SubscriptionID:  input.SubscriptionID,
		PaymentStatus:   models.PaymentStatusPending,
		AmountCents:     input.AmountCents,
		ProductType:     input.ProductType,
		ProductName:     input.ProductName,
		PackageID:       input.PackageID,
		Quantity:        input.Quantity,
		Customization:   input.Customization,
		Status:          models.OrderStatusProcessing,
	}
	if order.PaymentProvider == "" {
		order.PaymentProvider = models.ProviderManual
	}
	if order.Quantity <= 0 {
		order.Quantity = 1
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = defaultCountry
	}
	if order.PaymentID != nil && *order.PaymentID != "" {
		order.PaymentStatus = models.PaymentStatusCompleted
	}

	for attempt := 1; attempt <= maxOrderNumberTries; attempt++ {
		number, err := s.newOrderNumber()
		if err != nil {
			return nil, err
		}
		order.OrderNumber = number

		result := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_number"}},
			DoNothing: true,
		}).Create(order)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to create order: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return order, nil
		}
		log.Printf("Order number %s collided, retrying (attempt %d)", number, attempt)
		order.ID = 0
	}

	return nil, fmt.Errorf("failed to allocate a unique order number after %d attempts", maxOrderNumberTries)
}

// newOrderNumber returns ORD-<unix millis>-<7 random base36 characters>
func (s *OrderStore) newOrderNumber() (string, error) {
	suffix, err := randomCode(orderNumberAlphabet, orderSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%d-%s", s.now().UnixMilli(), suffix), nil
}

func (s *OrderStore) notifyOrderCreated(order *models.Order) {
	s.notifier.Enqueue(OrderConfirmationEmail(order, s.siteURL))
	if s.adminEmail != "" {
		s.notifier.Enqueue(AdminOrderEmail(order, s.adminEmail))
	}
}

// GetOrderByNumber looks an order up by its public order number
func (s *OrderStore) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByID looks an order up by primary key
func (s *OrderStore) GetOrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindBySessionID returns the order created for a hosted checkout session
func (s *OrderStore) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return findOrderBySessionID(s.db.WithContext(ctx), sessionID)
}

func findOrderBySessionID(tx *gorm.DB, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := tx.Where("stripe_session_id = ?", sessionID).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindBySubscriptionID returns the order a recurring subscription was opened for
func (s *OrderStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Order, error) {
	return findOrderBySubscriptionID(s.db.WithContext(ctx), subscriptionID)
}

func findOrderBySubscriptionID(tx *gorm.DB, subscriptionID string) (*models.Order, error) {
	var order models.Order
	if err := tx.Where("subscription_id = ?", subscriptionID).First(&order).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// attachSubscription links a subscription opened after the order was recorded
func (s *OrderStore) attachSubscription(ctx context.Context, orderID uint, subscriptionID string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND subscription_id IS NULL", orderID).
		Update("subscription_id", subscriptionID)
	if res.Error != nil {
		return fmt.Errorf("failed to link subscription %s: %w", subscriptionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// discardOrder hard-deletes an order whose payment never started
func (s *OrderStore) discardOrder(ctx context.Context, order *models.Order) {
	err := s.db.WithContext(context.WithoutCancel(ctx)).Unscoped().Delete(&models.Order{}, order.ID).Error
	if err != nil {
		log.Printf("Failed to discard order %s: %v", order.OrderNumber, err)
	}
}

// UpdateOrderStatus applies an admin update to fulfillment status and notes
func (s *OrderStore) UpdateOrderStatus(ctx context.Context, id uint, update OrderUpdate) (*models.Order, error) {
	updates := map[string]interface{}{}
	if update.Status != nil {
		if !validOrderStatuses[*update.Status] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
		}
		updates["status"] = *update.Status
	}
	if update.AdminNotes != nil {
		updates["admin_notes"] = *update.AdminNotes
	}

	order, err := s.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return order, nil
	}

	if err := s.db.WithContext(ctx).Model(order).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return s.GetOrderByID(ctx, id)
}

// LinkOrderToMemorial records which memorial an order paid for. Relinking to the same
// memorial is a no-op; relinking to a different one is rejected.
func (s *OrderStore) LinkOrderToMemorial(ctx context.Context, orderID uint, memorialID uuid.UUID) error {
	db := s.db.WithContext(ctx)

	result := db.Model(&models.Order{}).
		Where("id = ? AND memorial_id IS NULL", orderID).
		Update("memorial_id", memorialID)
	if result.Error != nil {
		return fmt.Errorf("failed to link order to memorial: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.MemorialID != nil && *order.MemorialID == memorialID {
		return nil
	}
	return ErrOrderAlreadyLinked
}

// markPaymentCompleted moves a pending order to completed. It reports whether the row changed.
func markPaymentCompleted(tx *gorm.DB, orderID uint, paymentID string) (bool, error) {
	updates := map[string]interface{}{"payment_status": models.PaymentStatusCompleted}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}
	result := tx.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}

// markPaymentFailed moves a pending order to failed; completed orders are never downgraded
func markPaymentFailed(tx *gorm.DB, orderID uint) (bool, error) {
	result := tx.Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Update("payment_status", models.PaymentStatusFailed)
	return result.RowsAffected == 1, result.Error
}

// createQRPlaceholder records that a paid order is owed a QR code
func createQRPlaceholder(tx *gorm.DB, orderID uint) error {
	placeholder := &models.QRCode{OrderID: orderID, Status: models.QRCodeStatusPending}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(placeholder).Error
}

func validateOrderInput(input CreateOrderInput) error {
	switch {
	case strings.TrimSpace(input.CustomerName) == "":
		return &ValidationError{Field: "customer_name", Message: "is required"}
	case strings.TrimSpace(input.CustomerEmail) == "":
		return &ValidationError{Field: "customer_email", Message: "is required"}
	case input.AmountCents < 0:
		return &ValidationError{Field: "amount_cents", Message: "must not be negative"}
	case strings.TrimSpace(input.ProductType) == "":
		return &ValidationError{Field: "product_type", Message: "is required"}
	case strings.TrimSpace(input.ProductName) == "":
		return &ValidationError{Field: "product_name", Message: "is required"}
	}
	return validateShipping(input.ShippingAddress)
}

// randomCode draws n characters uniformly from alphabet using crypto/rand
func randomCode(alphabet string, n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	base := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to generate random code: %w", err)
		}
		sb.WriteByte(alphabet[idx.Int64()])
	}
	return sb.String(), nil
}
