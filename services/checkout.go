package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/memorialqr/memorial-qr-api/models"
)

// Checkout session metadata keys. Metadata is the only channel that carries the cart
// forward to the webhook, because the session exists before any order row does.
const (
	metaPackageID         = "package_id"
	metaAddOnIDs          = "addon_ids"
	metaPlaqueColor       = "plaque_color"
	metaPersonalization   = "personalization"
	metaCustomerName      = "customer_name"
	metaCustomerEmail     = "customer_email"
	metaCustomerPhone     = "customer_phone"
	metaShippingLine1     = "shipping_line1"
	metaShippingLine2     = "shipping_line2"
	metaShippingCity      = "shipping_city"
	metaShippingState     = "shipping_state"
	metaShippingZip       = "shipping_zip"
	metaShippingCountry   = "shipping_country"
	metaMemorialFirstName = "memorial_first_name"
	metaMemorialLastName  = "memorial_last_name"
	metaQuantity          = "quantity"

	// Stripe caps metadata values at 500 characters
	maxMetadataValue = 500
)

var zipPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 -]{1,9}$`)

// CustomerInfo identifies the buyer
type CustomerInfo struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone"`
}

// CheckoutRequest is a cart: one package, optional add-ons and the plaque customization
type CheckoutRequest struct {
	PackageID         string                 `json:"package_id" binding:"required"`
	AddOnIDs          []string               `json:"addon_ids"`
	PlaqueColor       string                 `json:"plaque_color"`
	Personalization   string                 `json:"personalization"`
	Customer          CustomerInfo           `json:"customer" binding:"required"`
	Shipping          models.ShippingAddress `json:"shipping_address" binding:"required"`
	MemorialFirstName string                 `json:"memorial_first_name"`
	MemorialLastName  string                 `json:"memorial_last_name"`
}

// Quote is a priced cart
type Quote struct {
	Package    Package
	AddOns     []AddOn
	LineItems  []LineItem
	TotalCents int64
}

// Quote prices a package and add-ons. An unknown package is an error; unknown add-ons are skipped.
func (c *Catalog) Quote(packageID string, addOnIDs []string) (*Quote, error) {
	pkg, ok := c.Package(packageID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPackage, packageID)
	}

	q := &Quote{Package: pkg, TotalCents: pkg.PriceCents}
	q.LineItems = append(q.LineItems, LineItem{
		Name:            pkg.Name,
		Description:     pkg.Description(),
		UnitAmountCents: pkg.PriceCents,
		Quantity:        1,
	})

	for _, addOn := range c.ResolveAddOns(addOnIDs) {
		q.AddOns = append(q.AddOns, addOn)
		q.LineItems = append(q.LineItems, LineItem{
			Name:            addOn.Name,
			Description:     addOn.Description,
			UnitAmountCents: addOn.PriceCents,
			Quantity:        1,
		})
		q.TotalCents += addOn.PriceCents
	}

	return q, nil
}

// Customization reports the add-ons in the quote as order booleans
func (q *Quote) Customization(plaqueColor, personalization string) models.Customization {
	c := models.Customization{PlaqueColor: plaqueColor, Personalization: personalization}
	for _, addOn := range q.AddOns {
		switch addOn.ID {
		case AddOnExtraPlaque:
			c.AddonExtraPlaque = true
		case AddOnWoodenStand:
			c.AddonWoodenStand = true
		case AddOnGiftBox:
			c.AddonGiftBox = true
		}
	}
	return c
}

// CheckoutResult is returned to the browser to redirect to or embed the hosted payment page
type CheckoutResult struct {
	SessionID    string     `json:"session_id"`
	ClientSecret string     `json:"client_secret"`
	URL          string     `json:"url"`
	AmountCents  int64      `json:"amount_cents"`
	LineItems    []LineItem `json:"line_items"`
}

// CheckoutInitiator turns a cart into a provider-hosted checkout session
type CheckoutInitiator struct {
	catalog    *Catalog
	gateway    PaymentGateway
	successURL string
	cancelURL  string
}

// NewCheckoutInitiator creates a checkout initiator
func NewCheckoutInitiator(catalog *Catalog, gateway PaymentGateway, successURL, cancelURL string) *CheckoutInitiator {
	return &CheckoutInitiator{
		catalog:    catalog,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

// CreateCheckoutSession validates the cart and creates the hosted session. Validation
// failures are returned before the payment provider is contacted.
func (c *CheckoutInitiator) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	quote, err := c.catalog.Quote(req.PackageID, req.AddOnIDs)
	if err != nil {
		return nil, err
	}
	if err := validateShipping(req.Shipping); err != nil {
		return nil, err
	}

	metadata := CheckoutMetadata(req, quote)
	for key, value := range metadata {
		if len(value) > maxMetadataValue {
			return nil, &ValidationError{Field: key, Message: fmt.Sprintf("must be at most %d characters", maxMetadataValue)}
		}
	}

	session, err := c.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		IdempotencyKey: uuid.NewString(),
		CustomerEmail:  req.Customer.Email,
		LineItems:      quote.LineItems,
		Metadata:       metadata,
		SuccessURL:     c.successURL,
		CancelURL:      c.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	return &CheckoutResult{
		SessionID:    session.ID,
		ClientSecret: session.ClientSecret,
		URL:          session.URL,
		AmountCents:  quote.TotalCents,
		LineItems:    quote.LineItems,
	}, nil
}

// CheckoutMetadata flattens the cart into opaque string metadata
func CheckoutMetadata(req CheckoutRequest, quote *Quote) map[string]string {
	addOnIDs := make([]string, 0, len(quote.AddOns))
	for _, addOn := range quote.AddOns {
		addOnIDs = append(addOnIDs, addOn.ID)
	}

	metadata := map[string]string{
		metaPackageID:       quote.Package.ID,
		metaAddOnIDs:        strings.Join(addOnIDs, ","),
		metaPlaqueColor:     req.PlaqueColor,
		metaPersonalization: req.Personalization,
		metaCustomerName:    req.Customer.Name,
		metaCustomerEmail:   req.Customer.Email,
		metaCustomerPhone:   req.Customer.Phone,
		metaShippingLine1:   req.Shipping.Line1,
		metaShippingLine2:   req.Shipping.Line2,
		metaShippingCity:    req.Shipping.City,
		metaShippingState:   req.Shipping.State,
		metaShippingZip:     req.Shipping.Zip,
		metaShippingCountry: req.Shipping.Country,
		metaQuantity:        "1",
	}
	if req.MemorialFirstName != "" && req.MemorialLastName != "" {
		metadata[metaMemorialFirstName] = req.MemorialFirstName
		metadata[metaMemorialLastName] = req.MemorialLastName
	}
	return metadata
}

// orderInputFromMetadata rebuilds the order fields the checkout carried in metadata
func orderInputFromMetadata(catalog *Catalog, metadata map[string]string) CreateOrderInput {
	input := CreateOrderInput{
		CustomerName:  metadata[metaCustomerName],
		CustomerEmail: metadata[metaCustomerEmail],
		CustomerPhone: metadata[metaCustomerPhone],
		ShippingAddress: models.ShippingAddress{
			Line1:   metadata[metaShippingLine1],
			Line2:   metadata[metaShippingLine2],
			City:    metadata[metaShippingCity],
			State:   metadata[metaShippingState],
			Zip:     metadata[metaShippingZip],
			Country: metadata[metaShippingCountry],
		},
		PackageID:   metadata[metaPackageID],
		ProductType: "plaque",
		ProductName: metadata[metaPackageID],
		Quantity:    1,
	}
	if qty, err := strconv.Atoi(metadata[metaQuantity]); err == nil && qty > 0 {
		input.Quantity = qty
	}

	var addOnIDs []string
	if raw := metadata[metaAddOnIDs]; raw != "" {
		addOnIDs = strings.Split(raw, ",")
	}
	if quote, err := catalog.Quote(metadata[metaPackageID], addOnIDs); err == nil {
		input.ProductName = quote.Package.Name
		input.ProductType = quote.Package.ProductType
		input.Customization = quote.Customization(metadata[metaPlaqueColor], metadata[metaPersonalization])
	} else {
		input.Customization = models.Customization{
			PlaqueColor:     metadata[metaPlaqueColor],
			Personalization: metadata[metaPersonalization],
		}
	}
	return input
}

func validateShipping(addr models.ShippingAddress) error {
	required := map[string]string{
		"shipping_address.line1": addr.Line1,
		"shipping_address.city":  addr.City,
		"shipping_address.state": addr.State,
		"shipping_address.zip":   addr.Zip,
	}
	for _, field := range []string{"shipping_address.line1", "shipping_address.city", "shipping_address.state", "shipping_address.zip"} {
		if strings.TrimSpace(required[field]) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
	}
	if !zipPattern.MatchString(strings.TrimSpace(addr.Zip)) {
		return &ValidationError{Field: "shipping_address.zip", Message: "is not a valid postal code"}
	}
	return nil
}
