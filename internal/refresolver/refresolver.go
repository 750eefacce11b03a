// Package refresolver maps legacy catalog references (category trails,
// manufacturers, product types, tags) to target platform ids with
// find-or-create semantics. All caches are scoped to one job run and owned by
// the orchestrating goroutine.
package refresolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cartbridge/cartbridge/internal/errors"
	"github.com/cartbridge/cartbridge/internal/imagepipe"
	"github.com/cartbridge/cartbridge/internal/logging"
	"github.com/cartbridge/cartbridge/internal/targetapi"
)

// CategoryAPI is the slice of the admin client the category resolver needs.
type CategoryAPI interface {
	FindCategoryByHandle(ctx context.Context, handle string) (*targetapi.Category, error)
	CreateCategory(ctx context.Context, name, handle, parentID string) (*targetapi.Category, error)
}

// ReferenceAPI is the full admin surface the resolver uses.
type ReferenceAPI interface {
	CategoryAPI
	FindCollectionByTitle(ctx context.Context, title string) (*targetapi.Collection, error)
	CreateCollection(ctx context.Context, title, handle string) (*targetapi.Collection, error)
	FindProductTypeByValue(ctx context.Context, value string) (*targetapi.ProductType, error)
	CreateProductType(ctx context.Context, value string) (*targetapi.ProductType, error)
	FindTagByValue(ctx context.Context, value string) (*targetapi.Tag, error)
	CreateTag(ctx context.Context, value string) (*targetapi.Tag, error)
}

// Resolver caches reference ids for the lifetime of one job run. The caches
// do not persist across runs.
type Resolver struct {
	api    ReferenceAPI
	logger *slog.Logger

	categories  map[string]string // "parentID:handle" -> id
	collections map[string]string // lowercased title -> id
	types       map[string]string // lowercased value -> id
	tags        map[string]string // lowercased value -> id
}

// New creates a resolver with empty caches.
func New(api ReferenceAPI) *Resolver {
	return &Resolver{
		api:         api,
		logger:      logging.ForService("refresolver"),
		categories:  make(map[string]string),
		collections: make(map[string]string),
		types:       make(map[string]string),
		tags:        make(map[string]string),
	}
}

// ResolveCategoryTrail upserts every node of a root-to-leaf category trail and
// returns the leaf category id. The cache key includes the parent id so
// same-named siblings under different parents stay distinct. An empty trail
// resolves to no category.
func (r *Resolver) ResolveCategoryTrail(ctx context.Context, trail []string) (string, error) {
	parentID := ""
	parentSlug := ""
	for _, name := range trail {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		handle := imagepipe.Slugify(name)
		cacheKey := parentID + ":" + handle

		if id, ok := r.categories[cacheKey]; ok {
			parentID, parentSlug = id, handle
			continue
		}

		id, err := r.upsertCategory(ctx, name, handle, parentID, parentSlug)
		if err != nil {
			return "", err
		}
		r.categories[cacheKey] = id
		parentID, parentSlug = id, handle
	}
	return parentID, nil
}

// upsertCategory finds or creates one trail node. Handles are unique across
// the whole category tree on the target, so when the plain handle already
// belongs to a category under a different parent the node gets a handle
// scoped by its parent's slug instead.
func (r *Resolver) upsertCategory(ctx context.Context, name, handle, parentID, parentSlug string) (string, error) {
	existing, err := r.api.FindCategoryByHandle(ctx, handle)
	if err != nil {
		return "", r.wrap(err, "category", name)
	}
	if existing != nil && existing.ParentCategoryID == parentID {
		return existing.ID, nil
	}
	if existing != nil {
		scoped := handle + "-root"
		if parentSlug != "" {
			scoped = parentSlug + "-" + handle
		}
		existing, err = r.api.FindCategoryByHandle(ctx, scoped)
		if err != nil {
			return "", r.wrap(err, "category", name)
		}
		if existing != nil && existing.ParentCategoryID == parentID {
			return existing.ID, nil
		}
		handle = scoped
	}

	created, err := r.api.CreateCategory(ctx, name, handle, parentID)
	if err != nil {
		return "", r.wrap(err, "category", name)
	}
	r.logger.Debug("created category", "name", name, "handle", handle, "parent_id", parentID, "id", created.ID)
	return created.ID, nil
}

// ResolveCollection upserts a collection (legacy manufacturer) by title.
func (r *Resolver) ResolveCollection(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	key := strings.ToLower(title)
	if id, ok := r.collections[key]; ok {
		return id, nil
	}

	existing, err := r.api.FindCollectionByTitle(ctx, title)
	if err != nil {
		return "", r.wrap(err, "collection", title)
	}
	if existing != nil {
		r.collections[key] = existing.ID
		return existing.ID, nil
	}

	created, err := r.api.CreateCollection(ctx, title, imagepipe.Slugify(title))
	if err != nil {
		return "", r.wrap(err, "collection", title)
	}
	r.logger.Debug("created collection", "title", title, "id", created.ID)
	r.collections[key] = created.ID
	return created.ID, nil
}

// ResolveType upserts a product type by value.
func (r *Resolver) ResolveType(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	key := strings.ToLower(value)
	if id, ok := r.types[key]; ok {
		return id, nil
	}

	existing, err := r.api.FindProductTypeByValue(ctx, value)
	if err != nil {
		return "", r.wrap(err, "product type", value)
	}
	if existing != nil {
		r.types[key] = existing.ID
		return existing.ID, nil
	}

	created, err := r.api.CreateProductType(ctx, value)
	if err != nil {
		return "", r.wrap(err, "product type", value)
	}
	r.logger.Debug("created product type", "value", value, "id", created.ID)
	r.types[key] = created.ID
	return created.ID, nil
}

// ResolveTags upserts each tag value and returns the ids in input order.
// Blank and duplicate values collapse.
func (r *Resolver) ResolveTags(ctx context.Context, values []string) ([]string, error) {
	ids := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		key := strings.ToLower(value)
		if seen[key] {
			continue
		}
		seen[key] = true

		if id, ok := r.tags[key]; ok {
			ids = append(ids, id)
			continue
		}

		existing, err := r.api.FindTagByValue(ctx, value)
		if err != nil {
			return nil, r.wrap(err, "tag", value)
		}
		if existing != nil {
			r.tags[key] = existing.ID
			ids = append(ids, existing.ID)
			continue
		}

		created, err := r.api.CreateTag(ctx, value)
		if err != nil {
			return nil, r.wrap(err, "tag", value)
		}
		r.tags[key] = created.ID
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func (r *Resolver) wrap(err error, kind, value string) error {
	return errors.New(err).
		Component("refresolver").
		Category(errors.CategoryReference).
		Context("kind", kind).
		Context("value", value).
		Build()
}
