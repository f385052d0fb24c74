package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/memorialqr/memorial-qr-api/models"
	"gorm.io/gorm"
)

// SquareCheckoutRequest is a cart paid with a card nonce from the Square web payments SDK
type SquareCheckoutRequest struct {
	CheckoutRequest
	SourceID string `json:"source_id" binding:"required"`
}

// SquareCheckout takes payment through Square instead of a hosted checkout page
type SquareCheckout struct {
	db        *gorm.DB
	catalog   *Catalog
	client    SquareClient
	orders    *OrderStore
	memorials *MemorialProvisioner
}

// NewSquareCheckout creates the Square checkout flow. A nil client disables it.
func NewSquareCheckout(db *gorm.DB, catalog *Catalog, client SquareClient, orders *OrderStore, memorials *MemorialProvisioner) *SquareCheckout {
	return &SquareCheckout{
		db:        db,
		catalog:   catalog,
		client:    client,
		orders:    orders,
		memorials: memorials,
	}
}

// Pay charges the card once and records a completed order
func (s *SquareCheckout) Pay(ctx context.Context, req SquareCheckoutRequest) (*models.Order, error) {
	if s.client == nil {
		return nil, ErrProviderNotConfigured
	}
	quote, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	payment, err := s.client.CreatePayment(ctx, SquarePaymentRequest{
		IdempotencyKey: uuid.NewString(),
		SourceID:       req.SourceID,
		AmountCents:    quote.TotalCents,
		BuyerEmail:     req.Customer.Email,
		Note:           quote.Package.Name,
	})
	if err != nil {
		return nil, err
	}

	input := s.orderInput(req, quote)
	input.PaymentID = &payment.ID

	order, err := s.orders.CreateOrder(ctx, input)
	if err != nil {
		// The card has been charged at this point; the payment id in the log is what
		// support needs to reconcile
		log.Printf("Square payment %s captured but order creation failed: %v", payment.ID, err)
		return nil, err
	}

	if err := createQRPlaceholder(s.db.WithContext(ctx), order.ID); err != nil {
		log.Printf("Failed to create qr placeholder for order %s: %v", order.OrderNumber, err)
	}
	if req.MemorialFirstName != "" && req.MemorialLastName != "" {
		if _, err := s.memorials.ProvisionForOrder(ctx, order, req.MemorialFirstName, req.MemorialLastName); err != nil {
			log.Printf("Failed to provision memorial for order %s: %v", order.OrderNumber, err)
		}
	}
	return order, nil
}

// Subscribe records a pending order, then stores the card on a new customer and starts the
// subscription. The order exists before Square can bill, and the first invoice.payment_made
// webhook completes it.
func (s *SquareCheckout) Subscribe(ctx context.Context, req SquareCheckoutRequest) (*models.Order, error) {
	if s.client == nil {
		return nil, ErrProviderNotConfigured
	}
	quote, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.insertOrder(s.db.WithContext(ctx), s.orderInput(req, quote))
	if err != nil {
		return nil, err
	}

	subscriptionID, err := s.startSubscription(ctx, req)
	if err != nil {
		s.orders.discardOrder(ctx, order)
		return nil, err
	}

	if err := s.orders.attachSubscription(ctx, order.ID, subscriptionID); err != nil {
		log.Printf("Square subscription %s started but could not be linked to order %s: %v", subscriptionID, order.OrderNumber, err)
		return nil, err
	}
	order.SubscriptionID = &subscriptionID

	s.orders.notifyOrderCreated(order)
	return order, nil
}

func (s *SquareCheckout) startSubscription(ctx context.Context, req SquareCheckoutRequest) (string, error) {
	customerID, err := s.client.CreateCustomer(ctx, uuid.NewString(), req.Customer.Name, req.Customer.Email)
	if err != nil {
		return "", fmt.Errorf("failed to create square customer: %w", err)
	}
	cardID, err := s.client.CreateCard(ctx, uuid.NewString(), customerID, req.SourceID)
	if err != nil {
		return "", fmt.Errorf("failed to store card: %w", err)
	}
	subscription, err := s.client.CreateSubscription(ctx, uuid.NewString(), customerID, cardID)
	if err != nil {
		return "", err
	}
	return subscription.ID, nil
}

func (s *SquareCheckout) validate(req SquareCheckoutRequest) (*Quote, error) {
	if req.SourceID == "" {
		return nil, &ValidationError{Field: "source_id", Message: "is required"}
	}
	quote, err := s.catalog.Quote(req.PackageID, req.AddOnIDs)
	if err != nil {
		return nil, err
	}
	if err := validateShipping(req.Shipping); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *SquareCheckout) orderInput(req SquareCheckoutRequest, quote *Quote) CreateOrderInput {
	return CreateOrderInput{
		CustomerName:    req.Customer.Name,
		CustomerEmail:   req.Customer.Email,
		CustomerPhone:   req.Customer.Phone,
		ShippingAddress: req.Shipping,
		PaymentProvider: models.ProviderSquare,
		AmountCents:     quote.TotalCents,
		ProductType:     quote.Package.ProductType,
		ProductName:     quote.Package.Name,
		PackageID:       quote.Package.ID,
		Quantity:        1,
		Customization:   quote.Customization(req.PlaqueColor, req.Personalization),
	}
}
