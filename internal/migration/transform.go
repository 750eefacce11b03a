package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/cartbridge/cartbridge/internal/imagepipe"
	"github.com/cartbridge/cartbridge/internal/normalize"
	"github.com/cartbridge/cartbridge/internal/refresolver"
	"github.com/cartbridge/cartbridge/internal/sourcedb"
	"github.com/cartbridge/cartbridge/internal/targetapi"
)

// recordWriter carries the per-run wiring the transform needs for each record.
type recordWriter struct {
	runner     *Runner
	jobID      string
	params     Params
	locationID string
	channelID  string
}

// imageCounts aggregates a record's image pipeline outcome into the
// checkpoint counters.
type imageCounts struct {
	uploaded int
	failed   int
}

// processRecord transforms one source product and writes it to the target.
// Any error makes this one record count as failed; the run continues.
func (w *recordWriter) processRecord(ctx context.Context, record *sourcedb.ProductRecord) (imageCounts, error) {
	r := w.runner
	var counts imageCounts

	// Image resolution runs even in dry-run mode so the report reflects what
	// a live run would upload.
	candidates := []string{}
	if record.Image != "" {
		candidates = append(candidates, record.Image)
	}
	extra, err := r.source.FetchImages(ctx, record.ProductID)
	if err != nil {
		return counts, err
	}
	candidates = append(candidates, extra...)

	urls, results := r.images.BuildProductImages(ctx, "product", record.ProductID, candidates, imagepipe.ProductContext{
		ID:    record.ProductID,
		Name:  record.Name,
		Brand: record.Manufacturer,
	})
	for _, res := range results {
		switch res.Status {
		case imagepipe.StatusUploaded:
			counts.uploaded++
		case imagepipe.StatusFailed:
			counts.failed++
		}
	}

	specials, err := r.source.FetchSpecials(ctx, record.ProductID)
	if err != nil {
		return counts, err
	}
	price := normalize.ResolveActivePrice(record.Price, toSpecialPrices(specials), r.now())

	trails, err := w.categoryTrails(ctx, record)
	if err != nil {
		return counts, err
	}
	var primaryTrail []string
	if len(trails) > 0 {
		primaryTrail = trails[0]
	}
	tags := r.source.FetchTags(ctx, record.ProductID)

	payload := w.buildPayload(record, price, urls, tags)

	if w.params.DryRun {
		if err := payload.Validate(); err != nil {
			return counts, err
		}
		r.logger.Info("dry run, product not written",
			"job_id", w.jobID,
			"product_id", record.ProductID,
			"title", payload.Title,
			"sku", payload.Variants[0].SKU,
			"amount", price.Amount,
			"discount_percent", price.DiscountPercent,
			"category_trail", strings.Join(primaryTrail, " > "),
			"collection", record.Manufacturer,
			"tags", strings.Join(tags, ","),
			"images", len(urls))
		return counts, nil
	}

	w.resolveReferences(ctx, record.ProductID, payload, trails, record.Manufacturer, tags)

	created, err := r.target.CreateProduct(ctx, payload)
	if err != nil {
		return counts, err
	}

	if err := w.setInventory(ctx, payload.Variants[0].SKU, record.Quantity); err != nil {
		return counts, err
	}

	r.logger.Debug("product migrated",
		"job_id", w.jobID,
		"product_id", record.ProductID,
		"target_id", created.ID,
		"images", len(urls))
	return counts, nil
}

// categoryTrails returns the root-to-leaf category name trails for a record,
// primary category first. When the source has no category path at all the
// fallback is a single keyword-classified trail, or none.
func (w *recordWriter) categoryTrails(ctx context.Context, record *sourcedb.ProductRecord) ([][]string, error) {
	source := w.runner.source

	primaryID, err := source.FetchPrimaryCategory(ctx, record.ProductID)
	if err != nil {
		return nil, err
	}
	categoryIDs, err := source.FetchAllCategoryIDs(ctx, record.ProductID)
	if err != nil {
		return nil, err
	}

	ordered := make([]uint64, 0, len(categoryIDs)+1)
	if primaryID != 0 {
		ordered = append(ordered, primaryID)
	}
	for _, id := range categoryIDs {
		if id != primaryID {
			ordered = append(ordered, id)
		}
	}

	var trails [][]string
	for _, id := range ordered {
		nodes, err := source.FetchCategoryPath(ctx, id)
		if err != nil {
			return nil, err
		}
		trail := make([]string, 0, len(nodes))
		for _, n := range nodes {
			if n.Name != "" {
				trail = append(trail, n.Name)
			}
		}
		if len(trail) > 0 {
			trails = append(trails, trail)
		}
	}
	if len(trails) > 0 {
		return trails, nil
	}

	if fallback := refresolver.FallbackTrail(record.Name); fallback != nil {
		return [][]string{fallback}, nil
	}
	return nil, nil
}

// buildPayload assembles the product create call from normalized fields.
// Reference ids are filled in later by resolveReferences.
func (w *recordWriter) buildPayload(record *sourcedb.ProductRecord, price normalize.PriceResult, imageURLs, tags []string) *targetapi.ProductPayload {
	sku := record.SKU
	if sku == "" {
		sku = record.Model
	}
	if sku == "" {
		sku = fmt.Sprintf("LEGACY-%d", record.ProductID)
	}

	status := "draft"
	if record.Status != 0 {
		status = "published"
	}

	length := normalize.ToInventoryLength(record.Length, record.LengthUnit)
	width := normalize.ToInventoryLength(record.Width, record.LengthUnit)
	height := normalize.ToInventoryLength(record.Height, record.LengthUnit)
	weight := normalize.ToInventoryWeight(record.Weight, record.WeightUnit)

	images := make([]targetapi.ProductImagePayload, 0, len(imageURLs))
	for _, u := range imageURLs {
		images = append(images, targetapi.ProductImagePayload{URL: u})
	}

	payload := &targetapi.ProductPayload{
		Title:       record.Name,
		Handle:      fmt.Sprintf("%s-%d", imagepipe.Slugify(record.Name), record.ProductID),
		Description: record.Description,
		Status:      status,
		Images:      images,
		Options:     []targetapi.OptionPayload{{Title: "Default", Values: []string{"Default"}}},
		Length:      length,
		Width:       width,
		Height:      height,
		Weight:      weight,
		Metadata: map[string]any{
			"source_product_id": record.ProductID,
			"source_model":      record.Model,
			"display_length":    normalize.ToDisplayLength(record.Length, record.LengthUnit),
			"display_weight":    normalize.ToDisplayWeight(record.Weight, record.WeightUnit),
			"regular_amount":    price.RegularAmount,
			"discount_percent":  price.DiscountPercent,
		},
		Variants: []targetapi.VariantPayload{{
			Title:           "Default",
			SKU:             sku,
			Barcode:         firstNonEmpty(record.EAN, record.UPC),
			ManageInventory: true,
			Options:         map[string]any{"Default": "Default"},
			Prices: []targetapi.PricePayload{{
				Amount:       price.Amount,
				CurrencyCode: w.runner.settings.Target.CurrencyCode,
			}},
			Length: length,
			Width:  width,
			Height: height,
			Weight: weight,
		}},
	}
	if len(imageURLs) > 0 {
		payload.Thumbnail = imageURLs[0]
	}
	if w.channelID != "" {
		payload.SalesChannels = []targetapi.IDRef{{ID: w.channelID}}
	}
	return payload
}

// resolveReferences upserts the record's category trails, collection, type
// and tags and attaches the resulting ids to the payload. A rejected upsert
// is a warning, the product proceeds without that reference.
func (w *recordWriter) resolveReferences(ctx context.Context, productID uint64, payload *targetapi.ProductPayload, trails [][]string, manufacturer string, tags []string) {
	r := w.runner
	warn := func(kind string, err error) {
		r.logger.Warn("reference resolution failed, product proceeds without it",
			"job_id", w.jobID,
			"product_id", productID,
			"kind", kind,
			"error", err)
	}

	seenLeaf := make(map[string]bool, len(trails))
	for _, trail := range trails {
		leafID, err := r.refs.ResolveCategoryTrail(ctx, trail)
		if err != nil {
			warn("category", err)
			continue
		}
		if leafID != "" && !seenLeaf[leafID] {
			seenLeaf[leafID] = true
			payload.Categories = append(payload.Categories, targetapi.IDRef{ID: leafID})
		}
	}

	collectionID, err := r.refs.ResolveCollection(ctx, manufacturer)
	if err != nil {
		warn("collection", err)
	} else {
		payload.CollectionID = collectionID
	}

	if len(trails) > 0 && len(trails[0]) > 0 {
		typeID, err := r.refs.ResolveType(ctx, trails[0][0])
		if err != nil {
			warn("product type", err)
		} else {
			payload.TypeID = typeID
		}
	}

	tagIDs, err := r.refs.ResolveTags(ctx, tags)
	if err != nil {
		warn("tags", err)
		return
	}
	for _, id := range tagIDs {
		payload.Tags = append(payload.Tags, targetapi.IDRef{ID: id})
	}
}

// setInventory locates the inventory item created alongside the variant and
// seeds its stock level at the default location. A missing inventory item is
// tolerated, some target configurations create it asynchronously.
func (w *recordWriter) setInventory(ctx context.Context, sku string, quantity int) error {
	if w.locationID == "" {
		return nil
	}
	item, err := w.runner.target.FindInventoryItemBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if item == nil {
		w.runner.logger.Debug("no inventory item for sku yet, skipping stock level", "sku", sku)
		return nil
	}
	if quantity < 0 {
		quantity = 0
	}
	return w.runner.target.SetInventoryLevel(ctx, item.ID, w.locationID, quantity)
}

func toSpecialPrices(specials []sourcedb.ProductSpecial) []normalize.SpecialPrice {
	out := make([]normalize.SpecialPrice, 0, len(specials))
	for _, sp := range specials {
		converted := normalize.SpecialPrice{Price: sp.Price}
		if sp.DateStart != nil {
			converted.DateStart = *sp.DateStart
		}
		if sp.DateEnd != nil {
			converted.DateEnd = *sp.DateEnd
		}
		out = append(out, converted)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
