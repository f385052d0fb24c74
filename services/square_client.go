package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/memorialqr/memorial-qr-api/config"
	square "github.com/square/square-go-sdk"
	squareclient "github.com/square/square-go-sdk/client"
	"github.com/square/square-go-sdk/core"
	"github.com/square/square-go-sdk/option"
)

// SquarePaymentRequest charges a tokenized card once
type SquarePaymentRequest struct {
	IdempotencyKey string
	SourceID       string
	AmountCents    int64
	BuyerEmail     string
	Note           string
}

// SquarePayment is the subset of a Square payment the service uses
type SquarePayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SquareSubscription is the subset of a Square subscription the service uses
type SquareSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SquareClient is the part of the Square API used for one-off payments and subscriptions
type SquareClient interface {
	CreatePayment(ctx context.Context, req SquarePaymentRequest) (*SquarePayment, error)
	CreateCustomer(ctx context.Context, idempotencyKey, name, email string) (string, error)
	CreateCard(ctx context.Context, idempotencyKey, customerID, sourceID string) (string, error)
	CreateSubscription(ctx context.Context, idempotencyKey, customerID, cardID string) (*SquareSubscription, error)
}

// SquareAPIError is one entry of a Square error response
type SquareAPIError struct {
	Category string
	Code     string
	Detail   string
}

// SquareError is returned for non-2xx Square responses
type SquareError struct {
	StatusCode int
	Errors     []SquareAPIError
}

func (e *SquareError) Error() string {
	details := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		details = append(details, fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Detail))
	}
	return fmt.Sprintf("square api returned status %d: %s", e.StatusCode, strings.Join(details, "; "))
}

// Is reports card declines as ErrPaymentDeclined
func (e *SquareError) Is(target error) bool {
	if target != ErrPaymentDeclined {
		return false
	}
	for _, apiErr := range e.Errors {
		if apiErr.Category == string(square.ErrorCategoryPaymentMethodError) {
			return true
		}
	}
	return false
}

// SquareSDKClient implements SquareClient over the official Square Go SDK
type SquareSDKClient struct {
	client          *squareclient.Client
	locationID      string
	planVariationID string
}

// NewSquareClient creates a Square client for the configured environment
func NewSquareClient(cfg *config.Config) *SquareSDKClient {
	return NewSquareClientWithBaseURL(cfg, cfg.SquareBaseURL())
}

// NewSquareClientWithBaseURL points the client at baseURL instead of Square (for tests)
func NewSquareClientWithBaseURL(cfg *config.Config, baseURL string, opts ...option.RequestOption) *SquareSDKClient {
	opts = append([]option.RequestOption{
		option.WithToken(cfg.SquareAccessToken),
		option.WithBaseURL(strings.TrimRight(baseURL, "/")),
		option.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		// the SDK retrier resends an already drained request body
		option.WithMaxAttempts(1),
	}, opts...)

	return &SquareSDKClient{
		client:          squareclient.NewClient(opts...),
		locationID:      cfg.SquareLocationID,
		planVariationID: cfg.SquarePlanVariationID,
	}
}

// CreatePayment charges the card nonce in req.SourceID
func (c *SquareSDKClient) CreatePayment(ctx context.Context, req SquarePaymentRequest) (*SquarePayment, error) {
	request := &square.CreatePaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		SourceID:       req.SourceID,
		AmountMoney: &square.Money{
			Amount:   square.Int64(req.AmountCents),
			Currency: square.CurrencyUsd.Ptr(),
		},
		LocationID:   optionalString(c.locationID),
		Autocomplete: square.Bool(true),
	}
	request.BuyerEmailAddress = optionalString(req.BuyerEmail)
	request.Note = optionalString(req.Note)

	resp, err := c.client.Payments.Create(ctx, request)
	if err != nil {
		return nil, squareAPIError(err)
	}
	if resp.Payment == nil {
		return nil, errors.New("square returned no payment")
	}
	return &SquarePayment{
		ID:     deref(resp.Payment.ID),
		Status: deref(resp.Payment.Status),
	}, nil
}

// CreateCustomer creates a Square customer and returns its id
func (c *SquareSDKClient) CreateCustomer(ctx context.Context, idempotencyKey, name, email string) (string, error) {
	givenName, familyName := splitName(name)
	resp, err := c.client.Customers.Create(ctx, &square.CreateCustomerRequest{
		IdempotencyKey: square.String(idempotencyKey),
		GivenName:      optionalString(givenName),
		FamilyName:     optionalString(familyName),
		EmailAddress:   optionalString(email),
	})
	if err != nil {
		return "", squareAPIError(err)
	}
	if resp.Customer == nil {
		return "", errors.New("square returned no customer")
	}
	return deref(resp.Customer.ID), nil
}

// CreateCard stores the card nonce on the customer and returns the card id
func (c *SquareSDKClient) CreateCard(ctx context.Context, idempotencyKey, customerID, sourceID string) (string, error) {
	resp, err := c.client.Cards.Create(ctx, &square.CreateCardRequest{
		IdempotencyKey: idempotencyKey,
		SourceID:       sourceID,
		Card: &square.Card{
			CustomerID: square.String(customerID),
		},
	})
	if err != nil {
		return "", squareAPIError(err)
	}
	if resp.Card == nil {
		return "", errors.New("square returned no card")
	}
	return deref(resp.Card.ID), nil
}

// CreateSubscription subscribes the customer to the configured plan variation
func (c *SquareSDKClient) CreateSubscription(ctx context.Context, idempotencyKey, customerID, cardID string) (*SquareSubscription, error) {
	if c.planVariationID == "" {
		return nil, fmt.Errorf("%w: SQUARE_PLAN_VARIATION_ID is not set", ErrProviderNotConfigured)
	}

	resp, err := c.client.Subscriptions.Create(ctx, &square.CreateSubscriptionRequest{
		IdempotencyKey:  square.String(idempotencyKey),
		LocationID:      c.locationID,
		PlanVariationID: square.String(c.planVariationID),
		CustomerID:      customerID,
		CardID:          square.String(cardID),
	})
	if err != nil {
		return nil, squareAPIError(err)
	}
	if resp.Subscription == nil {
		return nil, errors.New("square returned no subscription")
	}

	subscription := &SquareSubscription{ID: deref(resp.Subscription.ID)}
	if resp.Subscription.Status != nil {
		subscription.Status = string(*resp.Subscription.Status)
	}
	return subscription, nil
}

// squareAPIError turns the SDK's status error into a SquareError carrying the decoded
// error list. Transport errors are wrapped as-is.
func squareAPIError(err error) error {
	var apiErr *core.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("failed to call square: %w", err)
	}

	squareErr := &SquareError{StatusCode: apiErr.StatusCode}
	if body := apiErr.Unwrap(); body != nil {
		var parsed struct {
			Errors []*square.Error `json:"errors"`
		}
		if json.Unmarshal([]byte(body.Error()), &parsed) == nil {
			for _, e := range parsed.Errors {
				if e == nil {
					continue
				}
				squareErr.Errors = append(squareErr.Errors, SquareAPIError{
					Category: string(e.Category),
					Code:     string(e.Code),
					Detail:   deref(e.Detail),
				})
			}
		}
	}
	return squareErr
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return square.String(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
