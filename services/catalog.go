package services

import "fmt"

// Package is a base product a customer buys
type Package struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductType string `json:"product_type"`
	PriceCents  int64  `json:"price_cents"`
	Photos      int    `json:"photos"`
	Videos      int    `json:"videos"`
	MusicTracks int    `json:"music_tracks"`
}

// Description enumerates what the package includes, shown on the checkout line item
func (p Package) Description() string {
	return fmt.Sprintf("QR memorial plaque with a memorial page for up to %d photos, %d videos and %d music tracks",
		p.Photos, p.Videos, p.MusicTracks)
}

// AddOn is an optional priced item attached to a package
type AddOn struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// Add-on ids
const (
	AddOnExtraPlaque = "extra_plaque"
	AddOnWoodenStand = "wooden_stand"
	AddOnGiftBox     = "gift_box"
)

// Catalog is the static, in-memory product list
type Catalog struct {
	packages   map[string]Package
	addOns     map[string]AddOn
	order      []string
	addOnOrder []string
}

// DefaultCatalog returns the products currently on sale
func DefaultCatalog() *Catalog {
	return NewCatalog(
		[]Package{
			{ID: "basic", Name: "Silver Plaque", ProductType: "plaque", PriceCents: 3989, Photos: 50, Videos: 5, MusicTracks: 5},
			{ID: "premium", Name: "Gold Plaque", ProductType: "plaque", PriceCents: 7989, Photos: 200, Videos: 20, MusicTracks: 20},
			{ID: "legacy", Name: "Legacy Granite Plaque", ProductType: "plaque", PriceCents: 14989, Photos: 1000, Videos: 100, MusicTracks: 50},
		},
		[]AddOn{
			{ID: AddOnExtraPlaque, Name: "Extra Plaque", Description: "A second plaque linked to the same memorial", PriceCents: 2499},
			{ID: AddOnWoodenStand, Name: "Wooden Stand", Description: "Hand-finished oak display stand", PriceCents: 1999},
			{ID: AddOnGiftBox, Name: "Gift Box", Description: "Presentation box with a sympathy card", PriceCents: 999},
		},
	)
}

// NewCatalog builds a catalog from explicit products
func NewCatalog(packages []Package, addOns []AddOn) *Catalog {
	c := &Catalog{
		packages: make(map[string]Package, len(packages)),
		addOns:   make(map[string]AddOn, len(addOns)),
	}
	for _, p := range packages {
		c.packages[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	for _, a := range addOns {
		c.addOns[a.ID] = a
		c.addOnOrder = append(c.addOnOrder, a.ID)
	}
	return c
}

// Package looks up a package by id
func (c *Catalog) Package(id string) (Package, bool) {
	p, ok := c.packages[id]
	return p, ok
}

// AddOn looks up an add-on by id
func (c *Catalog) AddOn(id string) (AddOn, bool) {
	a, ok := c.addOns[id]
	return a, ok
}

// ResolveAddOns returns the known add-ons among ids, in request order, without duplicates.
// Unknown ids are skipped, unlike unknown packages which are an error.
func (c *Catalog) ResolveAddOns(ids []string) []AddOn {
	seen := make(map[string]bool, len(ids))
	var out []AddOn
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := c.addOns[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Packages lists all packages in display order
func (c *Catalog) Packages() []Package {
	out := make([]Package, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.packages[id])
	}
	return out
}

// AddOns lists all add-ons in display order
func (c *Catalog) AddOns() []AddOn {
	out := make([]AddOn, 0, len(c.addOnOrder))
	for _, id := range c.addOnOrder {
		out = append(out, c.addOns[id])
	}
	return out
}
