package refresolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartbridge/cartbridge/internal/targetapi"
)

// fakeAPI implements ReferenceAPI in memory and counts calls.
type fakeAPI struct {
	categories  []targetapi.Category
	collections []targetapi.Collection
	types       []targetapi.ProductType
	tags        []targetapi.Tag

	finds   int
	creates int
	nextID  int
}

func (f *fakeAPI) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeAPI) FindCategoryByHandle(_ context.Context, handle string) (*targetapi.Category, error) {
	f.finds++
	for i := range f.categories {
		if strings.EqualFold(f.categories[i].Handle, handle) {
			return &f.categories[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) CreateCategory(_ context.Context, name, handle, parentID string) (*targetapi.Category, error) {
	f.creates++
	// Handles are unique on the real platform.
	for i := range f.categories {
		if strings.EqualFold(f.categories[i].Handle, handle) {
			return nil, fmt.Errorf("category handle %q already exists", handle)
		}
	}
	cat := targetapi.Category{ID: f.id("pcat"), Name: name, Handle: handle, ParentCategoryID: parentID}
	f.categories = append(f.categories, cat)
	return &cat, nil
}

func (f *fakeAPI) FindCollectionByTitle(_ context.Context, title string) (*targetapi.Collection, error) {
	f.finds++
	for i := range f.collections {
		if strings.EqualFold(f.collections[i].Title, title) {
			return &f.collections[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) CreateCollection(_ context.Context, title, handle string) (*targetapi.Collection, error) {
	f.creates++
	col := targetapi.Collection{ID: f.id("pcol"), Title: title, Handle: handle}
	f.collections = append(f.collections, col)
	return &col, nil
}

func (f *fakeAPI) FindProductTypeByValue(_ context.Context, value string) (*targetapi.ProductType, error) {
	f.finds++
	for i := range f.types {
		if strings.EqualFold(f.types[i].Value, value) {
			return &f.types[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) CreateProductType(_ context.Context, value string) (*targetapi.ProductType, error) {
	f.creates++
	pt := targetapi.ProductType{ID: f.id("ptyp"), Value: value}
	f.types = append(f.types, pt)
	return &pt, nil
}

func (f *fakeAPI) FindTagByValue(_ context.Context, value string) (*targetapi.Tag, error) {
	f.finds++
	for i := range f.tags {
		if strings.EqualFold(f.tags[i].Value, value) {
			return &f.tags[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAPI) CreateTag(_ context.Context, value string) (*targetapi.Tag, error) {
	f.creates++
	tag := targetapi.Tag{ID: f.id("ptag"), Value: value}
	f.tags = append(f.tags, tag)
	return &tag, nil
}

func TestResolveCategoryTrailThreadsParents(t *testing.T) {
	api := &fakeAPI{}
	r := New(api)

	leaf, err := r.ResolveCategoryTrail(context.Background(), []string{"Electronics", "Phones", "Smartphones"})
	require.NoError(t, err)
	require.Len(t, api.categories, 3)
	assert.Equal(t, api.categories[2].ID, leaf)

	assert.Empty(t, api.categories[0].ParentCategoryID)
	assert.Equal(t, api.categories[0].ID, api.categories[1].ParentCategoryID)
	assert.Equal(t, api.categories[1].ID, api.categories[2].ParentCategoryID)
}

func TestResolveCategoryTrailUsesCache(t *testing.T) {
	api := &fakeAPI{}
	r := New(api)

	first, err := r.ResolveCategoryTrail(context.Background(), []string{"Electronics", "Phones"})
	require.NoError(t, err)
	createsAfterFirst := api.creates
	findsAfterFirst := api.finds

	second, err := r.ResolveCategoryTrail(context.Background(), []string{"Electronics", "Phones"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, createsAfterFirst, api.creates, "second resolution must not create")
	assert.Equal(t, findsAfterFirst, api.finds, "second resolution must not hit the API")
}

func TestResolveCategoryTrailSameNameSiblings(t *testing.T) {
	api := &fakeAPI{}
	r := New(api)

	_, err := r.ResolveCategoryTrail(context.Background(), []string{"Phones", "Accessories"})
	require.NoError(t, err)
	_, err = r.ResolveCategoryTrail(context.Background(), []string{"Cameras", "Accessories"})
	require.NoError(t, err)

	// Two distinct "Accessories" nodes under different parents, with handles
	// the platform's uniqueness constraint accepts.
	var accessories []targetapi.Category
	for _, c := range api.categories {
		if c.Name == "Accessories" {
			accessories = append(accessories, c)
		}
	}
	require.Len(t, accessories, 2)
	assert.NotEqual(t, accessories[0].ParentCategoryID, accessories[1].ParentCategoryID)
	assert.NotEqual(t, accessories[0].Handle, accessories[1].Handle)
	assert.Equal(t, "accessories", accessories[0].Handle)
	assert.Equal(t, "cameras-accessories", accessories[1].Handle)

	// Re-resolving the second trail reuses the scoped node instead of
	// creating another one.
	creates := api.creates
	leaf, err := New(api).ResolveCategoryTrail(context.Background(), []string{"Cameras", "Accessories"})
	require.NoError(t, err)
	assert.Equal(t, accessories[1].ID, leaf)
	assert.Equal(t, creates, api.creates)
}

func TestResolveCategoryTrailEmpty(t *testing.T) {
	r := New(&fakeAPI{})
	leaf, err := r.ResolveCategoryTrail(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, leaf)
}

func TestResolveCollectionFindBeforeCreate(t *testing.T) {
	api := &fakeAPI{collections: []targetapi.Collection{{ID: "pcol_existing", Title: "Acme"}}}
	r := New(api)

	id, err := r.ResolveCollection(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "pcol_existing", id)
	assert.Zero(t, api.creates)

	// Cached on the normalized key now.
	again, err := r.ResolveCollection(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, 1, api.finds)
}

func TestResolveTypeCreateOnceThenCache(t *testing.T) {
	api := &fakeAPI{}
	r := New(api)

	first, err := r.ResolveType(context.Background(), "physical")
	require.NoError(t, err)
	second, err := r.ResolveType(context.Background(), "Physical")
	third, err2 := r.ResolveType(context.Background(), "PHYSICAL")
	require.NoError(t, err)
	require.NoError(t, err2)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, 1, api.creates)
	assert.Equal(t, 1, api.finds)
}

func TestResolveTagsOrderAndDedup(t *testing.T) {
	api := &fakeAPI{tags: []targetapi.Tag{{ID: "ptag_sale", Value: "sale"}}}
	r := New(api)

	ids, err := r.ResolveTags(context.Background(), []string{"new", "Sale", " ", "NEW"})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "ptag_sale", ids[1])
	assert.Equal(t, 1, api.creates)
}

func TestFallbackTrail(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{"Apple iPhone 13 128GB", []string{"Electronics", "Phones", "Smartphones"}},
		{"Dell XPS 15 Laptop", []string{"Electronics", "Computers", "Laptops"}},
		{"USB-C Charger 65W", []string{"Accessories"}},
		{"Canon EOS R6 Camera Body", []string{"Electronics", "Cameras"}},
		{"Mystery Box", nil},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackTrail(tt.title))
		})
	}
}
