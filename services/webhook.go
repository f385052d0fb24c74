package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/memorialqr/memorial-qr-api/models"
	square "github.com/square/square-go-sdk"
	squarewebhooks "github.com/square/square-go-sdk/webhooks/client"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stripe event types the receiver acts on
const (
	StripeCheckoutSessionCompleted = "checkout.session.completed"
	StripePaymentIntentFailed      = "payment_intent.payment_failed"
)

// Square event types the receiver acts on
const (
	SquareInvoicePaymentMade   = "invoice.payment_made"
	SquareInvoiceChargeFailed  = "invoice.scheduled_charge_failed"
	SquareSubscriptionUpdated  = "subscription.updated"
	squareSubscriptionCanceled = "CANCELED"
)

// WebhookResult describes what happened to one delivered event
type WebhookResult struct {
	Provider  string `json:"provider"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Duplicate bool   `json:"duplicate"`
	Handled   bool   `json:"handled"`
}

// WebhookReceiver verifies payment provider callbacks and applies them exactly once.
// Every event id is recorded in webhook_events inside the same transaction as its
// side effects, so a redelivered event finds its id already present and is acknowledged
// without being applied again.
type WebhookReceiver struct {
	db           *gorm.DB
	orders       *OrderStore
	memorials    *MemorialProvisioner
	gateway      PaymentGateway
	notifier     Notifier
	catalog      *Catalog
	stripeSecret string
	squareKey    string
	squareURL    string
	squareHooks  *squarewebhooks.Client
	now          func() time.Time
}

// WebhookConfig holds the provider signing secrets
type WebhookConfig struct {
	StripeWebhookSecret       string
	SquareWebhookSignatureKey string
	SquareWebhookURL          string
}

// NewWebhookReceiver creates a webhook receiver
func NewWebhookReceiver(db *gorm.DB, orders *OrderStore, memorials *MemorialProvisioner, gateway PaymentGateway, notifier Notifier, catalog *Catalog, cfg WebhookConfig) *WebhookReceiver {
	return &WebhookReceiver{
		db:           db,
		orders:       orders,
		memorials:    memorials,
		gateway:      gateway,
		notifier:     notifier,
		catalog:      catalog,
		stripeSecret: cfg.StripeWebhookSecret,
		squareKey:    cfg.SquareWebhookSignatureKey,
		squareURL:    cfg.SquareWebhookURL,
		squareHooks:  squarewebhooks.NewClient(),
		now:          time.Now,
	}
}

// webhookEffects collects the side effects that run only after the transaction commits
type webhookEffects struct {
	newOrders []*models.Order
	emails    []Email
	provision *provisionRequest
}

type provisionRequest struct {
	order     *models.Order
	firstName string
	lastName  string
}

// HandleStripe verifies and applies a Stripe event
func (r *WebhookReceiver) HandleStripe(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if r.stripeSecret == "" {
		log.Printf("ERROR: STRIPE_WEBHOOK_SECRET is not configured; rejecting stripe webhook")
		return nil, ErrWebhookSecretMissing
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, r.stripeSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookResult{Provider: models.ProviderStripe, EventID: event.ID, EventType: string(event.Type)}

	processed, err := r.isProcessed(ctx, models.ProviderStripe, event.ID)
	if err != nil {
		return nil, err
	}
	if processed {
		log.Printf("Stripe event %s already processed, acknowledging", event.ID)
		result.Duplicate = true
		return result, nil
	}

	var apply func(tx *gorm.DB, effects *webhookEffects) error
	switch event.Type {
	case StripeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		apply = func(tx *gorm.DB, effects *webhookEffects) error {
			return r.applyCheckoutCompleted(tx, &session, effects)
		}
		result.Handled = true

	case StripePaymentIntentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		// Provider lookup happens before the transaction so no connection is held across it
		sessionID, err := r.gateway.SessionIDForPaymentIntent(ctx, intent.ID)
		if err != nil {
			return nil, err
		}
		apply = func(tx *gorm.DB, effects *webhookEffects) error {
			return r.applyPaymentFailed(tx, intent.ID, sessionID)
		}
		result.Handled = true

	default:
		log.Printf("Ignoring unhandled stripe event type %s (%s)", event.Type, event.ID)
	}

	err = r.process(ctx, models.ProviderStripe, event.ID, string(event.Type), payload, apply)
	if errors.Is(err, ErrDuplicateEvent) {
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// process records the event and applies it in one transaction, then runs follow-ups
func (r *WebhookReceiver) process(ctx context.Context, provider, eventID, eventType string, payload []byte, apply func(tx *gorm.DB, effects *webhookEffects) error) error {
	effects := &webhookEffects{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &models.WebhookEvent{
			Provider:    provider,
			EventID:     eventID,
			EventType:   eventType,
			Payload:     datatypes.JSON(payload),
			ProcessedAt: r.now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
		if res.Error != nil {
			return fmt.Errorf("failed to record webhook event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateEvent
		}
		if apply == nil {
			return nil
		}
		return apply(tx, effects)
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateEvent) {
			log.Printf("Failed to process %s event %s (%s): %v", provider, eventID, eventType, err)
		}
		return err
	}

	r.runEffects(ctx, effects)
	return nil
}

func (r *WebhookReceiver) runEffects(ctx context.Context, effects *webhookEffects) {
	for _, order := range effects.newOrders {
		r.orders.notifyOrderCreated(order)
	}
	for _, email := range effects.emails {
		r.notifier.Enqueue(email)
	}
	if p := effects.provision; p != nil {
		memorial, err := r.memorials.ProvisionForOrder(ctx, p.order, p.firstName, p.lastName)
		if err != nil {
			log.Printf("Failed to provision memorial for order %s: %v", p.order.OrderNumber, err)
			return
		}
		log.Printf("Provisioned memorial %s for order %s", memorial.Slug, p.order.OrderNumber)
	}
}

func (r *WebhookReceiver) isProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return count > 0, nil
}

// applyCheckoutCompleted completes the pending order for the session or creates the order
// from the session metadata
func (r *WebhookReceiver) applyCheckoutCompleted(tx *gorm.DB, session *stripe.CheckoutSession, effects *webhookEffects) error {
	if session.ID == "" {
		return fmt.Errorf("%w: checkout session has no id", ErrInvalidPayload)
	}

	paid := session.PaymentStatus != stripe.CheckoutSessionPaymentStatusUnpaid
	paymentID := ""
	if session.PaymentIntent != nil {
		paymentID = session.PaymentIntent.ID
	}

	existing, err := findOrderBySessionID(tx, session.ID)
	switch {
	case err == nil:
		if paid {
			if _, err := markPaymentCompleted(tx, existing.ID, paymentID); err != nil {
				return fmt.Errorf("failed to complete order %s: %w", existing.OrderNumber, err)
			}
		}
		if err := createQRPlaceholder(tx, existing.ID); err != nil {
			return fmt.Errorf("failed to create qr placeholder: %w", err)
		}
		firstName, lastName := session.Metadata[metaMemorialFirstName], session.Metadata[metaMemorialLastName]
		if existing.MemorialID == nil && firstName != "" && lastName != "" {
			effects.provision = &provisionRequest{order: existing, firstName: firstName, lastName: lastName}
		}
		return nil
	case !errors.Is(err, ErrOrderNotFound):
		return err
	}

	input := orderInputFromMetadata(r.catalog, session.Metadata)
	if session.CustomerDetails != nil {
		if input.CustomerEmail == "" {
			input.CustomerEmail = session.CustomerDetails.Email
		}
		if input.CustomerName == "" {
			input.CustomerName = session.CustomerDetails.Name
		}
		if input.CustomerPhone == "" {
			input.CustomerPhone = session.CustomerDetails.Phone
		}
	}
	if input.CustomerEmail == "" {
		input.CustomerEmail = session.CustomerEmail
	}
	input.PaymentProvider = models.ProviderStripe
	input.AmountCents = session.AmountTotal
	input.StripeSessionID = &session.ID
	if paid && paymentID != "" {
		input.PaymentID = &paymentID
	}

	order, err := r.orders.insertOrder(tx, input)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("%w: session %s: %v", ErrInvalidPayload, session.ID, err)
		}
		if isDuplicateKeyError(err) {
			// A different event for the same session won the race
			return ErrDuplicateEvent
		}
		return err
	}
	if paid && paymentID == "" {
		if _, err := markPaymentCompleted(tx, order.ID, ""); err != nil {
			return err
		}
		order.PaymentStatus = models.PaymentStatusCompleted
	}

	if err := createQRPlaceholder(tx, order.ID); err != nil {
		return fmt.Errorf("failed to create qr placeholder: %w", err)
	}

	log.Printf("Created order %s from checkout session %s", order.OrderNumber, session.ID)
	effects.newOrders = append(effects.newOrders, order)

	firstName, lastName := session.Metadata[metaMemorialFirstName], session.Metadata[metaMemorialLastName]
	if firstName != "" && lastName != "" {
		effects.provision = &provisionRequest{order: order, firstName: firstName, lastName: lastName}
	}
	return nil
}

// applyPaymentFailed marks the session's order failed unless it already completed.
// Orders exist only after checkout.session.completed, so this reaches one for delayed
// payment methods (unpaid sessions). A card declined on the hosted page has no order yet.
func (r *WebhookReceiver) applyPaymentFailed(tx *gorm.DB, paymentIntentID, sessionID string) error {
	if sessionID == "" {
		log.Printf("No checkout session found for failed payment intent %s", paymentIntentID)
		return nil
	}

	order, err := findOrderBySessionID(tx, sessionID)
	if errors.Is(err, ErrOrderNotFound) {
		log.Printf("No order for checkout session %s (payment intent %s)", sessionID, paymentIntentID)
		return nil
	}
	if err != nil {
		return err
	}

	changed, err := markPaymentFailed(tx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to mark order %s failed: %w", order.OrderNumber, err)
	}
	if !changed {
		log.Printf("Order %s is %s; not marking it failed", order.OrderNumber, order.PaymentStatus)
	}
	return nil
}

type squareEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Data    struct {
		Type   string          `json:"type"`
		ID     string          `json:"id"`
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type squareMoneyAmount struct {
	Amount int64 `json:"amount"`
}

type squareInvoice struct {
	ID              string `json:"id"`
	SubscriptionID  string `json:"subscription_id"`
	Status          string `json:"status"`
	PaymentRequests []struct {
		ComputedAmountMoney       *squareMoneyAmount `json:"computed_amount_money"`
		TotalCompletedAmountMoney *squareMoneyAmount `json:"total_completed_amount_money"`
	} `json:"payment_requests"`
}

func (i *squareInvoice) amountCents() int64 {
	var total int64
	for _, req := range i.PaymentRequests {
		switch {
		case req.TotalCompletedAmountMoney != nil && req.TotalCompletedAmountMoney.Amount > 0:
			total += req.TotalCompletedAmountMoney.Amount
		case req.ComputedAmountMoney != nil:
			total += req.ComputedAmountMoney.Amount
		}
	}
	return total
}

// HandleSquare verifies and applies a Square subscription event
func (r *WebhookReceiver) HandleSquare(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if r.squareKey == "" || r.squareURL == "" {
		log.Printf("ERROR: SQUARE_WEBHOOK_SIGNATURE_KEY or SQUARE_WEBHOOK_URL is not configured; rejecting square webhook")
		return nil, ErrWebhookSecretMissing
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}
	err := r.squareHooks.VerifySignature(ctx, &square.VerifySignatureRequest{
		RequestBody:     string(payload),
		SignatureHeader: signature,
		SignatureKey:    r.squareKey,
		NotificationURL: r.squareURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var event squareEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.EventID == "" {
		return nil, fmt.Errorf("%w: missing event_id", ErrInvalidPayload)
	}

	result := &WebhookResult{Provider: models.ProviderSquare, EventID: event.EventID, EventType: event.Type}

	processed, err := r.isProcessed(ctx, models.ProviderSquare, event.EventID)
	if err != nil {
		return nil, err
	}
	if processed {
		log.Printf("Square event %s already processed, acknowledging", event.EventID)
		result.Duplicate = true
		return result, nil
	}

	var apply func(tx *gorm.DB, effects *webhookEffects) error
	switch event.Type {
	case SquareInvoicePaymentMade, SquareInvoiceChargeFailed:
		var object struct {
			Invoice squareInvoice `json:"invoice"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		succeeded := event.Type == SquareInvoicePaymentMade
		apply = func(tx *gorm.DB, effects *webhookEffects) error {
			return r.applyInvoice(tx, &object.Invoice, succeeded, effects)
		}
		result.Handled = true

	case SquareSubscriptionUpdated:
		var object struct {
			Subscription SquareSubscription `json:"subscription"`
		}
		if err := json.Unmarshal(event.Data.Object, &object); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if object.Subscription.Status == squareSubscriptionCanceled {
			apply = func(tx *gorm.DB, effects *webhookEffects) error {
				return r.applySubscriptionCanceled(tx, object.Subscription.ID, effects)
			}
			result.Handled = true
		}

	default:
		log.Printf("Ignoring unhandled square event type %s (%s)", event.Type, event.EventID)
	}

	err = r.process(ctx, models.ProviderSquare, event.EventID, event.Type, payload, apply)
	if errors.Is(err, ErrDuplicateEvent) {
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyInvoice records a subscription charge. The first successful charge completes the order.
// An invoice for a subscription with no order yet fails the delivery so Square retries it.
func (r *WebhookReceiver) applyInvoice(tx *gorm.DB, invoice *squareInvoice, succeeded bool, effects *webhookEffects) error {
	if invoice.SubscriptionID == "" {
		log.Printf("Square invoice %s is not linked to a subscription, ignoring", invoice.ID)
		return nil
	}

	order, err := findOrderBySubscriptionID(tx, invoice.SubscriptionID)
	if errors.Is(err, ErrOrderNotFound) {
		return fmt.Errorf("%w: subscription %s (invoice %s)", ErrSubscriptionOrderPending, invoice.SubscriptionID, invoice.ID)
	}
	if err != nil {
		return err
	}

	status := models.PaymentStatusFailed
	if succeeded {
		status = models.PaymentStatusCompleted
	}
	payment := &models.SubscriptionPayment{
		OrderID:        order.ID,
		SubscriptionID: invoice.SubscriptionID,
		InvoiceID:      invoice.ID,
		Status:         status,
		AmountCents:    invoice.amountCents(),
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(payment)
	if res.Error != nil {
		return fmt.Errorf("failed to record subscription payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("Subscription payment for invoice %s (%s) already recorded", invoice.ID, status)
		return nil
	}

	if !succeeded {
		effects.emails = append(effects.emails, SubscriptionEmail(TagSubscriptionFailed, order, payment.AmountCents))
		return nil
	}

	first, err := markPaymentCompleted(tx, order.ID, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to complete order %s: %w", order.OrderNumber, err)
	}
	if first {
		if err := createQRPlaceholder(tx, order.ID); err != nil {
			return fmt.Errorf("failed to create qr placeholder: %w", err)
		}
		log.Printf("First subscription payment completed order %s", order.OrderNumber)
	}
	effects.emails = append(effects.emails, SubscriptionEmail(TagSubscriptionPayment, order, payment.AmountCents))
	return nil
}

func (r *WebhookReceiver) applySubscriptionCanceled(tx *gorm.DB, subscriptionID string, effects *webhookEffects) error {
	order, err := findOrderBySubscriptionID(tx, subscriptionID)
	if errors.Is(err, ErrOrderNotFound) {
		return fmt.Errorf("%w: canceled subscription %s", ErrSubscriptionOrderPending, subscriptionID)
	}
	if err != nil {
		return err
	}

	res := tx.Model(&models.Order{}).
		Where("id = ? AND status <> ?", order.ID, models.OrderStatusSubscriptionCanceled).
		Update("status", models.OrderStatusSubscriptionCanceled)
	if res.Error != nil {
		return fmt.Errorf("failed to cancel order %s: %w", order.OrderNumber, res.Error)
	}
	if res.RowsAffected == 1 {
		order.Status = models.OrderStatusSubscriptionCanceled
		effects.emails = append(effects.emails, SubscriptionEmail(TagSubscriptionCancel, order, 0))
	}
	return nil
}
