package migration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cartbridge/cartbridge/internal/checkpoint"
	"github.com/cartbridge/cartbridge/internal/errors"
	"github.com/cartbridge/cartbridge/internal/jobstore"
)

// VerificationEntry is one spot-check row sampled from the source after a
// run, independent of what was migrated.
type VerificationEntry struct {
	ProductID    uint64    `json:"product_id"`
	Name         string    `json:"name"`
	Model        string    `json:"model"`
	SKU          string    `json:"sku,omitempty"`
	Price        float64   `json:"price"`
	Quantity     int       `json:"quantity"`
	DateModified time.Time `json:"date_modified"`
}

// Report is the final migration summary written once at run completion.
type Report struct {
	JobID          string              `json:"job_id"`
	GeneratedAt    time.Time           `json:"generated_at"`
	DryRun         bool                `json:"dry_run"`
	LastSourceID   uint64              `json:"last_source_id"`
	Processed      int                 `json:"processed"`
	Succeeded      int                 `json:"succeeded"`
	Failed         int                 `json:"failed"`
	ImagesUploaded int                 `json:"images_uploaded"`
	ImagesFailed   int                 `json:"images_failed"`
	Errors         []jobstore.JobError `json:"errors,omitempty"`
	Artifacts      map[string]string   `json:"artifacts,omitempty"`
}

// writeVerificationSample samples the most recently modified source records
// and writes them as a JSON artifact for manual spot-checking.
func (r *Runner) writeVerificationSample(ctx context.Context, jobID string) (string, error) {
	sampleSize := r.settings.Migration.VerifySampleSize
	if sampleSize <= 0 {
		sampleSize = 100
	}

	records, err := r.source.FetchRecentlyModified(ctx, sampleSize)
	if err != nil {
		return "", err
	}

	entries := make([]VerificationEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, VerificationEntry{
			ProductID:    rec.ProductID,
			Name:         rec.Name,
			Model:        rec.Model,
			SKU:          rec.SKU,
			Price:        rec.Price,
			Quantity:     rec.Quantity,
			DateModified: rec.DateModified,
		})
	}

	path := filepath.Join(r.settings.Migration.DataDir, "reports", jobID+"-verification.json")
	if err := writeJSONArtifact(path, entries); err != nil {
		return "", err
	}
	r.jobs.AttachArtifact(jobID, "verification_sample", path)
	return path, nil
}

// writeMigrationReport aggregates final counters, accumulated job errors and
// artifact paths into one summary file.
func (r *Runner) writeMigrationReport(jobID string, cp checkpoint.Checkpoint, samplePath string, params Params) (string, error) {
	report := Report{
		JobID:          jobID,
		GeneratedAt:    r.now(),
		DryRun:         params.DryRun,
		LastSourceID:   cp.LastSourceID,
		Processed:      cp.Processed,
		Succeeded:      cp.Succeeded,
		Failed:         cp.Failed,
		ImagesUploaded: cp.ImagesUploaded,
		ImagesFailed:   cp.ImagesFailed,
		Artifacts:      map[string]string{"checkpoint": r.CheckpointPath(jobID)},
	}
	if samplePath != "" {
		report.Artifacts["verification_sample"] = samplePath
	}
	if job, err := r.jobs.Get(jobID); err == nil && job != nil {
		report.Errors = job.Errors
	}

	path := filepath.Join(r.settings.Migration.DataDir, "reports", jobID+"-report.json")
	if err := writeJSONArtifact(path, report); err != nil {
		return "", err
	}
	r.jobs.AttachArtifact(jobID, "report", path)
	return path, nil
}

// writeJSONArtifact writes indented JSON with the same tmp+rename discipline
// as the checkpoint and job files.
func writeJSONArtifact(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryFileIO).
			Build()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryFileIO).
			Build()
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.New(err).
			Component("migration").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
