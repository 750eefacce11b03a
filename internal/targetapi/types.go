package targetapi

import (
	"fmt"

	"github.com/cartbridge/cartbridge/internal/errors"
)

// IDRef references an existing record by id in nested payloads.
type IDRef struct {
	ID string `json:"id"`
}

// StockLocation is a physical fulfilment location.
type StockLocation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SalesChannel is a storefront channel products are published to.
type SalesChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is a node in the target category tree.
type Category struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Handle           string `json:"handle"`
	ParentCategoryID string `json:"parent_category_id,omitempty"`
}

// Collection groups products for merchandising.
type Collection struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

// ProductType is a coarse product classification.
type ProductType struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Tag is a free-form product label.
type Tag struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// InventoryItem tracks stock for one variant, matched by SKU.
type InventoryItem struct {
	ID  string `json:"id"`
	SKU string `json:"sku"`
}

// ProductImagePayload is one image on a product create call.
type ProductImagePayload struct {
	URL string `json:"url"`
}

// OptionPayload declares a product option and its allowed values.
type OptionPayload struct {
	Title  string   `json:"title"`
	Values []string `json:"values"`
}

// PricePayload is one money amount on a variant. Amounts are whole currency
// units, the platform's storage convention.
type PricePayload struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

// VariantPayload is one purchasable variant on a product create call.
// Options is loosely typed because values arrive from legacy data; Validate
// rejects anything that is not a string before the payload goes on the wire.
type VariantPayload struct {
	Title           string         `json:"title"`
	SKU             string         `json:"sku,omitempty"`
	Barcode         string         `json:"barcode,omitempty"`
	ManageInventory bool           `json:"manage_inventory"`
	Prices          []PricePayload `json:"prices"`
	Options         map[string]any `json:"options,omitempty"`
	Weight          int            `json:"weight,omitempty"`
	Length          int            `json:"length,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
}

// ProductPayload is the nested product create call.
type ProductPayload struct {
	Title         string                `json:"title"`
	Handle        string                `json:"handle,omitempty"`
	Description   string                `json:"description,omitempty"`
	Status        string                `json:"status,omitempty"`
	Thumbnail     string                `json:"thumbnail,omitempty"`
	Images        []ProductImagePayload `json:"images,omitempty"`
	Categories    []IDRef               `json:"categories,omitempty"`
	CollectionID  string                `json:"collection_id,omitempty"`
	TypeID        string                `json:"type_id,omitempty"`
	Tags          []IDRef               `json:"tags,omitempty"`
	SalesChannels []IDRef               `json:"sales_channels,omitempty"`
	Options       []OptionPayload       `json:"options,omitempty"`
	Variants      []VariantPayload      `json:"variants"`
	Weight        int                   `json:"weight,omitempty"`
	Length        int                   `json:"length,omitempty"`
	Width         int                   `json:"width,omitempty"`
	Height        int                   `json:"height,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
}

// Product is the created product as returned by the target.
type Product struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Handle   string           `json:"handle"`
	Variants []ProductVariant `json:"variants"`
}

// ProductVariant is a created variant with its assigned id.
type ProductVariant struct {
	ID  string `json:"id"`
	SKU string `json:"sku"`
}

// Validate checks the payload before it goes on the wire, so malformed
// records fail fast instead of wasting a network round trip.
func (p *ProductPayload) Validate() error {
	if p.Title == "" {
		return errors.ValidationError("product title must not be empty")
	}
	if len(p.Variants) == 0 {
		return errors.ValidationError("product must have at least one variant")
	}
	for i := range p.Variants {
		v := &p.Variants[i]
		if len(v.Prices) == 0 {
			return errors.ValidationError(fmt.Sprintf("variant %d must have at least one price", i))
		}
		for _, price := range v.Prices {
			if price.Amount < 0 {
				return errors.ValidationError(fmt.Sprintf("variant %d has a negative price", i))
			}
			if price.CurrencyCode == "" {
				return errors.ValidationError(fmt.Sprintf("variant %d price is missing a currency code", i))
			}
		}
		for key, value := range v.Options {
			if _, ok := value.(string); !ok {
				return errors.ValidationError(fmt.Sprintf("variant %d option %q value must be a string", i, key))
			}
		}
	}
	return nil
}
