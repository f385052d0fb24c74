package services

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// LineItem is one priced row of a checkout session, amounts in cents
type LineItem struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	UnitAmountCents int64  `json:"unit_amount_cents"`
	Quantity        int64  `json:"quantity"`
}

// CheckoutSessionRequest is everything the provider needs to host a checkout page
type CheckoutSessionRequest struct {
	IdempotencyKey string
	CustomerEmail  string
	LineItems      []LineItem
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is the provider-hosted session handed back to the browser
type CheckoutSession struct {
	ID           string
	ClientSecret string
	URL          string
}

// PaymentGateway is the hosted-checkout payment provider
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// SessionIDForPaymentIntent finds the checkout session that created a payment intent.
	// It returns "" when there is none.
	SessionIDForPaymentIntent(ctx context.Context, paymentIntentID string) (string, error)
}

// StripeGateway implements PaymentGateway with Stripe Checkout
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway with its own API client rather than the global stripe.Key
func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

// CreateCheckoutSession creates a hosted Stripe Checkout session in payment mode
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		// metadata is mirrored onto the payment intent so payment_intent events carry it too
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)

	for _, item := range req.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount:  stripe.Int64(item.UnitAmountCents),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	return &CheckoutSession{
		ID:           session.ID,
		ClientSecret: session.ClientSecret,
		URL:          session.URL,
	}, nil
}

// SessionIDForPaymentIntent lists checkout sessions filtered by payment intent
func (g *StripeGateway) SessionIDForPaymentIntent(ctx context.Context, paymentIntentID string) (string, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := g.api.CheckoutSessions.List(params)
	for iter.Next() {
		return iter.CheckoutSession().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to look up checkout session for %s: %w", paymentIntentID, err)
	}
	return "", nil
}
