// models.go: read-only GORM models for the legacy storefront schema.
// Table names resolve through the configured prefix (typically "oc_").
package sourcedb

import "time"

// Product is the legacy product row. The pipeline never writes to it.
type Product struct {
	ProductID      uint64    `gorm:"column:product_id;primaryKey"`
	Model          string    `gorm:"column:model"`
	SKU            string    `gorm:"column:sku"`
	UPC            string    `gorm:"column:upc"`
	EAN            string    `gorm:"column:ean"`
	Quantity       int       `gorm:"column:quantity"`
	Image          string    `gorm:"column:image"`
	ManufacturerID uint64    `gorm:"column:manufacturer_id"`
	Price          float64   `gorm:"column:price"`
	Length         float64   `gorm:"column:length"`
	Width          float64   `gorm:"column:width"`
	Height         float64   `gorm:"column:height"`
	Weight         float64   `gorm:"column:weight"`
	LengthClassID  uint64    `gorm:"column:length_class_id"`
	WeightClassID  uint64    `gorm:"column:weight_class_id"`
	Status         int       `gorm:"column:status"`
	DateAdded      time.Time `gorm:"column:date_added"`
	DateModified   time.Time `gorm:"column:date_modified"`
}

// ProductDescription carries per-language product text.
type ProductDescription struct {
	ProductID       uint64 `gorm:"column:product_id;primaryKey"`
	LanguageID      int    `gorm:"column:language_id;primaryKey"`
	Name            string `gorm:"column:name"`
	Description     string `gorm:"column:description"`
	MetaTitle       string `gorm:"column:meta_title"`
	MetaDescription string `gorm:"column:meta_description"`
	Tag             string `gorm:"column:tag"`
}

// ProductSpecial is a time-bounded promotional price row.
// Nil dates mean that end of the window is unbounded.
type ProductSpecial struct {
	ProductSpecialID uint64     `gorm:"column:product_special_id;primaryKey"`
	ProductID        uint64     `gorm:"column:product_id"`
	Price            float64    `gorm:"column:price"`
	Priority         int        `gorm:"column:priority"`
	DateStart        *time.Time `gorm:"column:date_start"`
	DateEnd          *time.Time `gorm:"column:date_end"`
}

// ProductImage is an additional image reference beyond the product's main image.
type ProductImage struct {
	ProductImageID uint64 `gorm:"column:product_image_id;primaryKey"`
	ProductID      uint64 `gorm:"column:product_id"`
	Image          string `gorm:"column:image"`
	SortOrder      int    `gorm:"column:sort_order"`
}

// ProductToCategory links a product to one of possibly many categories.
type ProductToCategory struct {
	ProductID  uint64 `gorm:"column:product_id;primaryKey"`
	CategoryID uint64 `gorm:"column:category_id;primaryKey"`
}

// Category is the legacy category row; names live in CategoryDescription.
type Category struct {
	CategoryID uint64 `gorm:"column:category_id;primaryKey"`
	ParentID   uint64 `gorm:"column:parent_id"`
	SortOrder  int    `gorm:"column:sort_order"`
	Status     int    `gorm:"column:status"`
}

// CategoryDescription carries per-language category names.
type CategoryDescription struct {
	CategoryID uint64 `gorm:"column:category_id;primaryKey"`
	LanguageID int    `gorm:"column:language_id;primaryKey"`
	Name       string `gorm:"column:name"`
}

// CategoryPath is the materialized ancestor table: one row per
// (category, ancestor) pair with the ancestor's depth as level.
type CategoryPath struct {
	CategoryID uint64 `gorm:"column:category_id;primaryKey"`
	PathID     uint64 `gorm:"column:path_id;primaryKey"`
	Level      int    `gorm:"column:level"`
}

// Manufacturer is the legacy brand row.
type Manufacturer struct {
	ManufacturerID uint64 `gorm:"column:manufacturer_id;primaryKey"`
	Name           string `gorm:"column:name"`
}

// LengthClassDescription names a length unit ("cm", "mm", "in").
type LengthClassDescription struct {
	LengthClassID uint64 `gorm:"column:length_class_id;primaryKey"`
	LanguageID    int    `gorm:"column:language_id;primaryKey"`
	Title         string `gorm:"column:title"`
	Unit          string `gorm:"column:unit"`
}

// WeightClassDescription names a weight unit ("kg", "g", "lb").
type WeightClassDescription struct {
	WeightClassID uint64 `gorm:"column:weight_class_id;primaryKey"`
	LanguageID    int    `gorm:"column:language_id;primaryKey"`
	Title         string `gorm:"column:title"`
	Unit          string `gorm:"column:unit"`
}

// ProductTag is the oldest tag storage convention: one row per tag.
type ProductTag struct {
	ProductTagID uint64 `gorm:"column:product_tag_id;primaryKey"`
	ProductID    uint64 `gorm:"column:product_id"`
	Tag          string `gorm:"column:tag"`
}

// Tag and ProductToTag are the join-table tag convention used by some
// legacy installations.
type Tag struct {
	TagID uint64 `gorm:"column:tag_id;primaryKey"`
	Name  string `gorm:"column:name"`
}

type ProductToTag struct {
	ProductID uint64 `gorm:"column:product_id;primaryKey"`
	TagID     uint64 `gorm:"column:tag_id;primaryKey"`
}
