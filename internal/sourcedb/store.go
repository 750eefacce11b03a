// Package sourcedb issues read-only, join-enriched queries against the legacy
// storefront schema. It never mutates source data.
package sourcedb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/errors"
)

// ProductRecord is the join-enriched row shape the orchestrator consumes.
type ProductRecord struct {
	ProductID       uint64    `gorm:"column:product_id"`
	Model           string    `gorm:"column:model"`
	SKU             string    `gorm:"column:sku"`
	UPC             string    `gorm:"column:upc"`
	EAN             string    `gorm:"column:ean"`
	Quantity        int       `gorm:"column:quantity"`
	Image           string    `gorm:"column:image"`
	Price           float64   `gorm:"column:price"`
	Length          float64   `gorm:"column:length"`
	Width           float64   `gorm:"column:width"`
	Height          float64   `gorm:"column:height"`
	Weight          float64   `gorm:"column:weight"`
	Status          int       `gorm:"column:status"`
	DateModified    time.Time `gorm:"column:date_modified"`
	Name            string    `gorm:"column:name"`
	Description     string    `gorm:"column:description"`
	MetaTitle       string    `gorm:"column:meta_title"`
	MetaDescription string    `gorm:"column:meta_description"`
	Manufacturer    string    `gorm:"column:manufacturer_name"`
	LengthUnit      string    `gorm:"column:length_unit"`
	WeightUnit      string    `gorm:"column:weight_unit"`
}

// CategoryNode is one element of a root-to-leaf category trail.
type CategoryNode struct {
	ID       uint64 `gorm:"column:id"`
	Name     string `gorm:"column:name"`
	ParentID uint64 `gorm:"column:parent_id"`
}

// Store is the read-only extractor over the legacy schema.
type Store struct {
	db         *gorm.DB
	prefix     string
	languageID int
	logger     *slog.Logger
}

// New opens a MySQL connection to the legacy schema.
func New(settings *conf.SourceSettings, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(settings.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("sourcedb").
			Category(errors.CategorySourceQuery).
			Context("host", settings.Host).
			Build()
	}
	return NewWithDB(db, settings.Prefix, settings.LanguageID, logger), nil
}

// NewWithDB wraps an existing GORM handle; used by tests with sqlite.
func NewWithDB(db *gorm.DB, prefix string, languageID int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if languageID == 0 {
		languageID = 1
	}
	return &Store{
		db:         db,
		prefix:     prefix,
		languageID: languageID,
		logger:     logger.With("service", "sourcedb"),
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) tbl(name string) string {
	return s.prefix + name
}

func (s *Store) queryErr(err error, operation string) error {
	return errors.New(err).
		Component("sourcedb").
		Category(errors.CategorySourceQuery).
		Context("operation", operation).
		Build()
}

// FetchBatch returns up to limit products with id strictly greater than
// afterID, ordered by id ascending and enriched with description, brand and
// unit names. A short page signals source exhaustion to the caller.
func (s *Store) FetchBatch(ctx context.Context, afterID uint64, limit int) ([]ProductRecord, error) {
	var records []ProductRecord
	err := s.db.WithContext(ctx).
		Table(s.tbl("product")+" AS p").
		Select(`p.product_id, p.model, p.sku, p.upc, p.ean, p.quantity, p.image, p.price,
			p.length, p.width, p.height, p.weight, p.status, p.date_modified,
			COALESCE(pd.name, '') AS name,
			COALESCE(pd.description, '') AS description,
			COALESCE(pd.meta_title, '') AS meta_title,
			COALESCE(pd.meta_description, '') AS meta_description,
			COALESCE(m.name, '') AS manufacturer_name,
			COALESCE(lcd.unit, '') AS length_unit,
			COALESCE(wcd.unit, '') AS weight_unit`).
		Joins(fmt.Sprintf("LEFT JOIN %s AS pd ON pd.product_id = p.product_id AND pd.language_id = ?", s.tbl("product_description")), s.languageID).
		Joins(fmt.Sprintf("LEFT JOIN %s AS m ON m.manufacturer_id = p.manufacturer_id", s.tbl("manufacturer"))).
		Joins(fmt.Sprintf("LEFT JOIN %s AS lcd ON lcd.length_class_id = p.length_class_id AND lcd.language_id = ?", s.tbl("length_class_description")), s.languageID).
		Joins(fmt.Sprintf("LEFT JOIN %s AS wcd ON wcd.weight_class_id = p.weight_class_id AND wcd.language_id = ?", s.tbl("weight_class_description")), s.languageID).
		Where("p.product_id > ?", afterID).
		Order("p.product_id ASC").
		Limit(limit).
		Scan(&records).Error
	if err != nil {
		return nil, s.queryErr(err, "fetch_batch")
	}
	return records, nil
}

// FetchSpecials returns the promotional price rows for a product.
func (s *Store) FetchSpecials(ctx context.Context, productID uint64) ([]ProductSpecial, error) {
	var specials []ProductSpecial
	err := s.db.WithContext(ctx).
		Table(s.tbl("product_special")).
		Where("product_id = ?", productID).
		Order("priority ASC, price ASC").
		Scan(&specials).Error
	if err != nil {
		return nil, s.queryErr(err, "fetch_specials")
	}
	return specials, nil
}

// FetchImages returns the additional image references for a product in sort
// order. The product's main image is carried on the batch row itself.
func (s *Store) FetchImages(ctx context.Context, productID uint64) ([]string, error) {
	var images []string
	err := s.db.WithContext(ctx).
		Table(s.tbl("product_image")).
		Where("product_id = ?", productID).
		Order("sort_order ASC, product_image_id ASC").
		Pluck("image", &images).Error
	if err != nil {
		return nil, s.queryErr(err, "fetch_images")
	}
	return images, nil
}

// FetchTags returns a product's tags, trying the three storage conventions
// seen across legacy installations in priority order. A missing table is not
// an error; the first strategy yielding tags wins.
func (s *Store) FetchTags(ctx context.Context, productID uint64) []string {
	strategies := []struct {
		name  string
		query func() ([]string, error)
	}{
		{"product_tag", func() ([]string, error) {
			var tags []string
			err := s.db.WithContext(ctx).
				Table(s.tbl("product_tag")).
				Where("product_id = ?", productID).
				Pluck("tag", &tags).Error
			return tags, err
		}},
		{"product_to_tag", func() ([]string, error) {
			var tags []string
			err := s.db.WithContext(ctx).
				Table(s.tbl("product_to_tag")+" AS ptt").
				Joins(fmt.Sprintf("JOIN %s AS t ON t.tag_id = ptt.tag_id", s.tbl("tag"))).
				Where("ptt.product_id = ?", productID).
				Pluck("t.name", &tags).Error
			return tags, err
		}},
		{"description_column", func() ([]string, error) {
			var raw []string
			err := s.db.WithContext(ctx).
				Table(s.tbl("product_description")).
				Where("product_id = ? AND language_id = ?", productID, s.languageID).
				Limit(1).
				Pluck("tag", &raw).Error
			if err != nil {
				return nil, err
			}
			if len(raw) == 0 {
				return nil, nil
			}
			return splitTagList(raw[0]), nil
		}},
	}

	for _, strategy := range strategies {
		tags, err := strategy.query()
		if err != nil {
			// Schema variance: the table for this convention does not exist here
			s.logger.Debug("tag strategy unavailable", "strategy", strategy.name, "error", err)
			continue
		}
		if cleaned := cleanTags(tags); len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

func splitTagList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func cleanTags(tags []string) []string {
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, tag)
	}
	return cleaned
}

// FetchPrimaryCategory returns the most specific category a product belongs
// to, preferring the one with the deepest ancestor path. Returns 0 when the
// product has no category links.
func (s *Store) FetchPrimaryCategory(ctx context.Context, productID uint64) (uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).
		Table(s.tbl("product_to_category")+" AS ptc").
		Joins(fmt.Sprintf("LEFT JOIN %s AS cp ON cp.category_id = ptc.category_id", s.tbl("category_path"))).
		Where("ptc.product_id = ?", productID).
		Group("ptc.category_id").
		Order("COUNT(cp.path_id) DESC, ptc.category_id ASC").
		Limit(1).
		Pluck("ptc.category_id", &ids).Error
	if err != nil {
		return 0, s.queryErr(err, "fetch_primary_category")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// FetchAllCategoryIDs returns every category a product is linked to.
func (s *Store) FetchAllCategoryIDs(ctx context.Context, productID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).
		Table(s.tbl("product_to_category")).
		Where("product_id = ?", productID).
		Order("category_id ASC").
		Pluck("category_id", &ids).Error
	if err != nil {
		return nil, s.queryErr(err, "fetch_all_category_ids")
	}
	return ids, nil
}

// FetchCategoryPath reconstructs the root-to-leaf trail for a category from
// the materialized path table, falling back to walking parent links when the
// installation has no path table.
func (s *Store) FetchCategoryPath(ctx context.Context, categoryID uint64) ([]CategoryNode, error) {
	var trail []CategoryNode
	err := s.db.WithContext(ctx).
		Table(s.tbl("category_path")+" AS cp").
		Select(`cp.path_id AS id, COALESCE(cd.name, '') AS name, COALESCE(c.parent_id, 0) AS parent_id`).
		Joins(fmt.Sprintf("LEFT JOIN %s AS cd ON cd.category_id = cp.path_id AND cd.language_id = ?", s.tbl("category_description")), s.languageID).
		Joins(fmt.Sprintf("LEFT JOIN %s AS c ON c.category_id = cp.path_id", s.tbl("category"))).
		Where("cp.category_id = ?", categoryID).
		Order("cp.level ASC").
		Scan(&trail).Error
	if err != nil || len(trail) == 0 {
		if err != nil {
			s.logger.Debug("category path table unavailable, walking parents", "error", err)
		}
		return s.walkParents(ctx, categoryID)
	}
	return trail, nil
}

// walkParents builds the trail leaf-to-root via parent links, then reverses.
// Used on installations without a materialized path table.
func (s *Store) walkParents(ctx context.Context, categoryID uint64) ([]CategoryNode, error) {
	var reversed []CategoryNode
	current := categoryID
	for current != 0 && len(reversed) < 32 {
		var nodes []CategoryNode
		err := s.db.WithContext(ctx).
			Table(s.tbl("category")+" AS c").
			Select(`c.category_id AS id, COALESCE(cd.name, '') AS name, c.parent_id`).
			Joins(fmt.Sprintf("LEFT JOIN %s AS cd ON cd.category_id = c.category_id AND cd.language_id = ?", s.tbl("category_description")), s.languageID).
			Where("c.category_id = ?", current).
			Limit(1).
			Scan(&nodes).Error
		if err != nil {
			return nil, s.queryErr(err, "walk_parents")
		}
		if len(nodes) == 0 {
			break
		}
		reversed = append(reversed, nodes[0])
		current = nodes[0].ParentID
	}

	trail := make([]CategoryNode, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		trail = append(trail, reversed[i])
	}
	return trail, nil
}

// FetchRecentlyModified returns the most recently modified products for
// verification sampling.
func (s *Store) FetchRecentlyModified(ctx context.Context, limit int) ([]ProductRecord, error) {
	var records []ProductRecord
	err := s.db.WithContext(ctx).
		Table(s.tbl("product")+" AS p").
		Select(`p.product_id, p.model, p.sku, p.quantity, p.price, p.status, p.date_modified,
			COALESCE(pd.name, '') AS name`).
		Joins(fmt.Sprintf("LEFT JOIN %s AS pd ON pd.product_id = p.product_id AND pd.language_id = ?", s.tbl("product_description")), s.languageID).
		Order("p.date_modified DESC").
		Limit(limit).
		Scan(&records).Error
	if err != nil {
		return nil, s.queryErr(err, "fetch_recently_modified")
	}
	return records, nil
}

// CountProducts returns the total number of products in the source.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Table(s.tbl("product")).
		Count(&count).Error
	if err != nil {
		return 0, s.queryErr(err, "count_products")
	}
	return count, nil
}
