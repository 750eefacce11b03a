// Package migration drives the catalog migration: it pulls product batches
// from the legacy source, transforms each record, writes it to the target
// admin API, and checkpoints after every record so a crash loses at most one
// in-flight product.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cartbridge/cartbridge/internal/checkpoint"
	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/errors"
	"github.com/cartbridge/cartbridge/internal/imagepipe"
	"github.com/cartbridge/cartbridge/internal/jobstore"
	"github.com/cartbridge/cartbridge/internal/logging"
	"github.com/cartbridge/cartbridge/internal/sourcedb"
	"github.com/cartbridge/cartbridge/internal/targetapi"
)

// Extractor is the read-only slice of the source store the runner consumes.
type Extractor interface {
	FetchBatch(ctx context.Context, afterID uint64, limit int) ([]sourcedb.ProductRecord, error)
	FetchSpecials(ctx context.Context, productID uint64) ([]sourcedb.ProductSpecial, error)
	FetchImages(ctx context.Context, productID uint64) ([]string, error)
	FetchTags(ctx context.Context, productID uint64) []string
	FetchPrimaryCategory(ctx context.Context, productID uint64) (uint64, error)
	FetchAllCategoryIDs(ctx context.Context, productID uint64) ([]uint64, error)
	FetchCategoryPath(ctx context.Context, categoryID uint64) ([]sourcedb.CategoryNode, error)
	FetchRecentlyModified(ctx context.Context, limit int) ([]sourcedb.ProductRecord, error)
	CountProducts(ctx context.Context) (int64, error)
}

// TargetWriter is the slice of the admin client the runner writes through.
type TargetWriter interface {
	ListStockLocations(ctx context.Context, query string) ([]targetapi.StockLocation, error)
	CreateStockLocation(ctx context.Context, name string) (*targetapi.StockLocation, error)
	ListSalesChannels(ctx context.Context, query string) ([]targetapi.SalesChannel, error)
	CreateSalesChannel(ctx context.Context, name string) (*targetapi.SalesChannel, error)
	CreateProduct(ctx context.Context, payload *targetapi.ProductPayload) (*targetapi.Product, error)
	FindInventoryItemBySKU(ctx context.Context, sku string) (*targetapi.InventoryItem, error)
	SetInventoryLevel(ctx context.Context, inventoryItemID, locationID string, quantity int) error
}

// References resolves legacy catalog references to target ids.
type References interface {
	ResolveCategoryTrail(ctx context.Context, trail []string) (string, error)
	ResolveCollection(ctx context.Context, title string) (string, error)
	ResolveType(ctx context.Context, value string) (string, error)
	ResolveTags(ctx context.Context, values []string) ([]string, error)
}

// ImageResolver turns candidate image URLs into durable object URLs.
type ImageResolver interface {
	BuildProductImages(ctx context.Context, sourceTable string, sourceID uint64, candidates []string, pctx imagepipe.ProductContext) ([]string, []*imagepipe.Result)
}

// Params tune one migration run.
type Params struct {
	DryRun      bool
	MaxProducts int
	BatchSize   int
	Resume      bool
}

// Runner executes one migration job end to end.
type Runner struct {
	settings *conf.Settings
	jobs     *jobstore.Store
	source   Extractor
	target   TargetWriter
	refs     References
	images   ImageResolver
	logger   *slog.Logger
	now      func() time.Time
}

// NewRunner wires a runner from its collaborators.
func NewRunner(settings *conf.Settings, jobs *jobstore.Store, source Extractor, target TargetWriter, refs References, images ImageResolver) *Runner {
	return &Runner{
		settings: settings,
		jobs:     jobs,
		source:   source,
		target:   target,
		refs:     refs,
		images:   images,
		logger:   logging.ForService("migration"),
		now:      time.Now,
	}
}

// CheckpointPath returns where a job's checkpoint lives on disk.
func (r *Runner) CheckpointPath(jobID string) string {
	return filepath.Join(r.settings.Migration.DataDir, "checkpoints", jobID+".json")
}

// Run executes the migration for an already-created job. Per-record failures
// are recorded and skipped; only batch-fetch or checkpoint-persist failures
// abort the run.
func (r *Runner) Run(ctx context.Context, jobID string, params Params) error {
	if params.BatchSize <= 0 {
		params.BatchSize = r.settings.Migration.BatchSize
	}

	if _, err := r.jobs.UpdateStatus(jobID, jobstore.StatusRunning, nil); err != nil {
		return err
	}

	cpPath := r.CheckpointPath(jobID)
	var cp checkpoint.Checkpoint
	if params.Resume {
		loaded, err := checkpoint.Load(cpPath)
		if err != nil {
			return r.fail(jobID, "loading checkpoint", err)
		}
		cp = loaded
		r.logger.Info("resuming from checkpoint",
			"job_id", jobID,
			"last_source_id", cp.LastSourceID,
			"processed", cp.Processed)
	}

	locationID, channelID := "", ""
	if !params.DryRun {
		var err error
		locationID, channelID, err = r.ensureTargetScaffolding(ctx)
		if err != nil {
			return r.fail(jobID, "preparing stock location and sales channel", err)
		}
	}

	if total, err := r.source.CountProducts(ctx); err == nil {
		r.jobs.UpdateProgress(jobID, map[string]any{"total_products": total})
	}

	run := &recordWriter{
		runner:     r,
		jobID:      jobID,
		params:     params,
		locationID: locationID,
		channelID:  channelID,
	}

	capped := false
	for {
		batch, err := r.source.FetchBatch(ctx, cp.LastSourceID, params.BatchSize)
		if err != nil {
			return r.fail(jobID, "fetching source batch", err)
		}

		for i := range batch {
			if params.MaxProducts > 0 && cp.Processed >= params.MaxProducts {
				capped = true
				break
			}
			record := &batch[i]

			images, writeErr := run.processRecord(ctx, record)
			cp.Processed++
			if writeErr != nil {
				cp.Failed++
				r.jobs.AddError(jobID, fmt.Sprintf("product %d (%s)", record.ProductID, record.Name), writeErr)
				r.logger.Warn("record failed, continuing",
					"job_id", jobID,
					"product_id", record.ProductID,
					"error", writeErr)
			} else {
				cp.Succeeded++
			}
			cp.ImagesUploaded += images.uploaded
			cp.ImagesFailed += images.failed
			cp.LastSourceID = record.ProductID

			if err := checkpoint.Persist(cpPath, cp); err != nil {
				return r.fail(jobID, "persisting checkpoint", err)
			}
			r.jobs.UpdateProgress(jobID, progressOf(cp))
		}

		if capped || len(batch) < params.BatchSize {
			break
		}
	}

	samplePath, err := r.writeVerificationSample(ctx, jobID)
	if err != nil {
		r.jobs.AddError(jobID, "verification sample", err)
		r.logger.Warn("verification sample failed", "job_id", jobID, "error", err)
	}

	reportPath, err := r.writeMigrationReport(jobID, cp, samplePath, params)
	if err != nil {
		r.jobs.AddError(jobID, "migration report", err)
	}

	r.logger.Info("migration finished",
		"job_id", jobID,
		"processed", cp.Processed,
		"succeeded", cp.Succeeded,
		"failed", cp.Failed,
		"images_uploaded", cp.ImagesUploaded,
		"images_failed", cp.ImagesFailed,
		"capped", capped)

	_, err = r.jobs.UpdateStatus(jobID, jobstore.StatusCompleted, map[string]any{"report": reportPath})
	return err
}

// fail marks the job failed and returns a wrapped error. The checkpoint is
// left in place for a later resume.
func (r *Runner) fail(jobID, activity string, cause error) error {
	err := errors.New(cause).
		Component("migration").
		Category(errors.CategoryState).
		Context("activity", activity).
		Build()
	r.jobs.AddError(jobID, activity, cause)
	r.jobs.UpdateStatus(jobID, jobstore.StatusFailed, map[string]any{"failed_during": activity})
	return err
}

// ensureTargetScaffolding finds or creates the default stock location and
// sales channel, once per run.
func (r *Runner) ensureTargetScaffolding(ctx context.Context) (locationID, channelID string, err error) {
	locName := r.settings.Target.StockLocation
	locations, err := r.target.ListStockLocations(ctx, locName)
	if err != nil {
		return "", "", err
	}
	for i := range locations {
		if locations[i].Name == locName {
			locationID = locations[i].ID
			break
		}
	}
	if locationID == "" {
		created, err := r.target.CreateStockLocation(ctx, locName)
		if err != nil {
			return "", "", err
		}
		locationID = created.ID
		r.logger.Info("created stock location", "name", locName, "id", locationID)
	}

	chName := r.settings.Target.SalesChannel
	channels, err := r.target.ListSalesChannels(ctx, chName)
	if err != nil {
		return "", "", err
	}
	for i := range channels {
		if channels[i].Name == chName {
			channelID = channels[i].ID
			break
		}
	}
	if channelID == "" {
		created, err := r.target.CreateSalesChannel(ctx, chName)
		if err != nil {
			return "", "", err
		}
		channelID = created.ID
		r.logger.Info("created sales channel", "name", chName, "id", channelID)
	}

	return locationID, channelID, nil
}

func progressOf(cp checkpoint.Checkpoint) map[string]any {
	return map[string]any{
		"last_source_id":  cp.LastSourceID,
		"processed":       cp.Processed,
		"succeeded":       cp.Succeeded,
		"failed":          cp.Failed,
		"images_uploaded": cp.ImagesUploaded,
		"images_failed":   cp.ImagesFailed,
	}
}
