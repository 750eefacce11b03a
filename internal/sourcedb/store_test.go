package sourcedb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const testPrefix = "oc_"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   testPrefix,
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&Product{}, &ProductDescription{}, &ProductSpecial{}, &ProductImage{},
		&ProductToCategory{}, &Category{}, &CategoryDescription{}, &CategoryPath{},
		&Manufacturer{}, &LengthClassDescription{}, &WeightClassDescription{},
		&ProductTag{}, &Tag{}, &ProductToTag{},
	))
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB, productCount int) {
	t.Helper()

	require.NoError(t, db.Create(&Manufacturer{ManufacturerID: 1, Name: "Acme"}).Error)
	require.NoError(t, db.Create(&LengthClassDescription{LengthClassID: 1, LanguageID: 1, Title: "Centimeter", Unit: "cm"}).Error)
	require.NoError(t, db.Create(&WeightClassDescription{WeightClassID: 1, LanguageID: 1, Title: "Kilogram", Unit: "kg"}).Error)

	// Electronics(10) > Phones(11) > Smartphones(12)
	for _, c := range []Category{
		{CategoryID: 10, ParentID: 0},
		{CategoryID: 11, ParentID: 10},
		{CategoryID: 12, ParentID: 11},
	} {
		require.NoError(t, db.Create(&c).Error)
	}
	for _, cd := range []CategoryDescription{
		{CategoryID: 10, LanguageID: 1, Name: "Electronics"},
		{CategoryID: 11, LanguageID: 1, Name: "Phones"},
		{CategoryID: 12, LanguageID: 1, Name: "Smartphones"},
	} {
		require.NoError(t, db.Create(&cd).Error)
	}
	for _, cp := range []CategoryPath{
		{CategoryID: 10, PathID: 10, Level: 0},
		{CategoryID: 11, PathID: 10, Level: 0},
		{CategoryID: 11, PathID: 11, Level: 1},
		{CategoryID: 12, PathID: 10, Level: 0},
		{CategoryID: 12, PathID: 11, Level: 1},
		{CategoryID: 12, PathID: 12, Level: 2},
	} {
		require.NoError(t, db.Create(&cp).Error)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= productCount; i++ {
		id := uint64(i)
		require.NoError(t, db.Create(&Product{
			ProductID:      id,
			Model:          fmt.Sprintf("SKU-%03d", i),
			SKU:            fmt.Sprintf("SKU-%03d", i),
			Quantity:       10 * i,
			Image:          fmt.Sprintf("catalog/p%d.jpg", i),
			ManufacturerID: 1,
			Price:          float64(100 * i),
			Length:         10, Width: 5, Height: 2, Weight: 0.5,
			LengthClassID: 1, WeightClassID: 1,
			Status:       1,
			DateModified: base.Add(time.Duration(i) * time.Hour),
		}).Error)
		require.NoError(t, db.Create(&ProductDescription{
			ProductID:  id,
			LanguageID: 1,
			Name:       fmt.Sprintf("Product %d", i),
			Tag:        "",
		}).Error)
	}
}

func newSeededStore(t *testing.T, productCount int) (*Store, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	seedCatalog(t, db, productCount)
	return NewWithDB(db, testPrefix, 1, nil), db
}

func TestFetchBatchKeysetPagination(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 7)
	ctx := context.Background()

	first, err := store.FetchBatch(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, uint64(1), first[0].ProductID)
	assert.Equal(t, uint64(3), first[2].ProductID)
	assert.Equal(t, "Product 1", first[0].Name)
	assert.Equal(t, "Acme", first[0].Manufacturer)
	assert.Equal(t, "cm", first[0].LengthUnit)
	assert.Equal(t, "kg", first[0].WeightUnit)

	second, err := store.FetchBatch(ctx, first[2].ProductID, 3)
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.Equal(t, uint64(4), second[0].ProductID)

	// Last page is short, signalling exhaustion
	last, err := store.FetchBatch(ctx, second[2].ProductID, 3)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, uint64(7), last[0].ProductID)
}

func TestFetchBatchAfterCursorSkipsEarlierIDs(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 5)

	batch, err := store.FetchBatch(context.Background(), 42, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	batch, err = store.FetchBatch(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	for _, record := range batch {
		assert.Greater(t, record.ProductID, uint64(3))
	}
}

func TestFetchBatchMissingDescriptionYieldsEmptyStrings(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	require.NoError(t, db.Create(&Product{ProductID: 1, Model: "X"}).Error)
	store := NewWithDB(db, testPrefix, 1, nil)

	batch, err := store.FetchBatch(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Empty(t, batch[0].Name)
	assert.Empty(t, batch[0].Manufacturer)
}

func TestFetchSpecials(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&ProductSpecial{ProductSpecialID: 1, ProductID: 1, Price: 80, Priority: 1, DateStart: &start}).Error)
	require.NoError(t, db.Create(&ProductSpecial{ProductSpecialID: 2, ProductID: 1, Price: 60, Priority: 2}).Error)

	specials, err := store.FetchSpecials(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, specials, 2)
	assert.Equal(t, 80.0, specials[0].Price)
	require.NotNil(t, specials[0].DateStart)
	assert.Nil(t, specials[1].DateStart)
}

func TestFetchImagesOrdered(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	require.NoError(t, db.Create(&ProductImage{ProductImageID: 1, ProductID: 1, Image: "catalog/extra2.jpg", SortOrder: 2}).Error)
	require.NoError(t, db.Create(&ProductImage{ProductImageID: 2, ProductID: 1, Image: "catalog/extra1.jpg", SortOrder: 1}).Error)

	images, err := store.FetchImages(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog/extra1.jpg", "catalog/extra2.jpg"}, images)
}

func TestFetchTagsStrategyPriority(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	// Strategy 3 only: comma-separated column on the description row
	require.NoError(t, db.Model(&ProductDescription{}).
		Where("product_id = ? AND language_id = ?", 1, 1).
		Update("tag", "phone, android , phone").Error)
	tags := store.FetchTags(context.Background(), 1)
	assert.Equal(t, []string{"phone", "android"}, tags)

	// Strategy 2 takes precedence over strategy 3
	require.NoError(t, db.Create(&Tag{TagID: 1, Name: "flagship"}).Error)
	require.NoError(t, db.Create(&ProductToTag{ProductID: 1, TagID: 1}).Error)
	tags = store.FetchTags(context.Background(), 1)
	assert.Equal(t, []string{"flagship"}, tags)

	// Strategy 1 beats both
	require.NoError(t, db.Create(&ProductTag{ProductTagID: 1, ProductID: 1, Tag: "legacy-tag"}).Error)
	tags = store.FetchTags(context.Background(), 1)
	assert.Equal(t, []string{"legacy-tag"}, tags)
}

func TestFetchTagsToleratesMissingTables(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	// Simulate older installations that never had the tag tables
	require.NoError(t, db.Migrator().DropTable(&ProductTag{}))
	require.NoError(t, db.Migrator().DropTable(&ProductToTag{}))
	require.NoError(t, db.Migrator().DropTable(&Tag{}))

	require.NoError(t, db.Model(&ProductDescription{}).
		Where("product_id = ? AND language_id = ?", 1, 1).
		Update("tag", "fallback").Error)

	tags := store.FetchTags(context.Background(), 1)
	assert.Equal(t, []string{"fallback"}, tags)
}

func TestFetchPrimaryCategoryPrefersDeepestPath(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	// Linked to both the root and the leaf; the leaf has the deeper path
	require.NoError(t, db.Create(&ProductToCategory{ProductID: 1, CategoryID: 10}).Error)
	require.NoError(t, db.Create(&ProductToCategory{ProductID: 1, CategoryID: 12}).Error)

	id, err := store.FetchPrimaryCategory(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)
}

func TestFetchPrimaryCategoryNoneIsZero(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 1)

	id, err := store.FetchPrimaryCategory(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestFetchCategoryPathRootToLeaf(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 1)

	trail, err := store.FetchCategoryPath(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "Electronics", trail[0].Name)
	assert.Equal(t, "Phones", trail[1].Name)
	assert.Equal(t, "Smartphones", trail[2].Name)
	assert.Equal(t, uint64(0), trail[0].ParentID)
	assert.Equal(t, uint64(11), trail[2].ParentID)
}

func TestFetchCategoryPathFallsBackToParentWalk(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	require.NoError(t, db.Migrator().DropTable(&CategoryPath{}))

	trail, err := store.FetchCategoryPath(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "Electronics", trail[0].Name)
	assert.Equal(t, "Smartphones", trail[2].Name)
}

func TestFetchAllCategoryIDs(t *testing.T) {
	t.Parallel()
	store, db := newSeededStore(t, 1)

	require.NoError(t, db.Create(&ProductToCategory{ProductID: 1, CategoryID: 12}).Error)
	require.NoError(t, db.Create(&ProductToCategory{ProductID: 1, CategoryID: 10}).Error)

	ids, err := store.FetchAllCategoryIDs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 12}, ids)
}

func TestFetchRecentlyModified(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 5)

	records, err := store.FetchRecentlyModified(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Highest product id was seeded with the latest modification time
	assert.Equal(t, uint64(5), records[0].ProductID)
	assert.Equal(t, uint64(3), records[2].ProductID)
}

func TestCountProducts(t *testing.T) {
	t.Parallel()
	store, _ := newSeededStore(t, 4)

	count, err := store.CountProducts(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}
