// Package migrate implements the migrate subcommand, which runs a full
// catalog migration as one tracked job.
package migrate

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/imagepipe"
	"github.com/cartbridge/cartbridge/internal/jobstore"
	"github.com/cartbridge/cartbridge/internal/logging"
	"github.com/cartbridge/cartbridge/internal/migration"
	"github.com/cartbridge/cartbridge/internal/objectstore"
	"github.com/cartbridge/cartbridge/internal/refresolver"
	"github.com/cartbridge/cartbridge/internal/sourcedb"
	"github.com/cartbridge/cartbridge/internal/targetapi"
)

type options struct {
	dryRun      bool
	maxProducts int
	batchSize   int
	resume      bool
	jobID       string
}

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the legacy catalog to the target platform",
		Long:  "Extract products from the legacy storefront database, transform them and write them to the target admin API, checkpointing after every record.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd.Context(), settings, opts)
		},
	}

	if err := setupFlags(cmd, settings, opts); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings, opts *options) error {
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", viper.GetBool("migration.dryrun"), "Extract and transform without writing to the target")
	cmd.Flags().IntVar(&opts.maxProducts, "max-products", 0, "Stop after this many products (0 = no cap)")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", viper.GetInt("migration.batchsize"), "Products fetched per source page")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Resume from the job's last checkpoint")
	cmd.Flags().StringVar(&opts.jobID, "job", "", "Existing job id to resume (requires --resume)")

	return viper.BindPFlags(cmd.Flags())
}

// resumableJob looks up the job named by --job. The store returns nil for
// unknown ids, which here is a user error, not a crash.
func resumableJob(jobs *jobstore.Store, id string) (*jobstore.Job, error) {
	job, err := jobs.Get(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %q not found", id)
	}
	return job, nil
}

func runMigration(ctx context.Context, settings *conf.Settings, opts *options) error {
	logger := logging.ForService("migrate")

	jobs, err := jobstore.NewStore(settings.Migration.DataDir, logger)
	if err != nil {
		return err
	}

	source, err := sourcedb.New(&settings.Source, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := targetapi.NewClient(targetapi.Config{
		BaseURL:  settings.Target.BaseURL,
		APIToken: settings.Target.APIToken,
		Timeout:  settings.Target.Timeout,
	})
	if err != nil {
		return err
	}
	defer target.Close()

	store, err := objectstore.NewS3Store(ctx, &settings.Storage)
	if err != nil {
		return err
	}
	if !store.Configured() {
		logger.Warn("object storage not configured, images will be skipped")
	}

	images := imagepipe.New(store,
		settings.Migration.ImageConcurrency,
		settings.Migration.MaxImagesPerProduct,
		settings.Migration.PlaceholderImageURL)
	refs := refresolver.New(target)
	runner := migration.NewRunner(settings, jobs, source, target, refs, images)

	var job *jobstore.Job
	if opts.resume && opts.jobID != "" {
		job, err = resumableJob(jobs, opts.jobID)
		if err != nil {
			return err
		}
	} else {
		job, err = jobs.Create("migrate", map[string]any{
			"dry_run":      opts.dryRun,
			"max_products": opts.maxProducts,
			"batch_size":   opts.batchSize,
			"resume":       opts.resume,
		})
		if err != nil {
			return err
		}
	}

	fmt.Printf("Job %s started (dry-run: %v)\n", job.ID, opts.dryRun)

	params := migration.Params{
		DryRun:      opts.dryRun,
		MaxProducts: opts.maxProducts,
		BatchSize:   opts.batchSize,
		Resume:      opts.resume,
	}
	if err := runner.Run(ctx, job.ID, params); err != nil {
		return err
	}

	final, err := jobs.Get(job.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Job %s %s\n", final.ID, final.Status)
	for k, v := range final.Progress {
		fmt.Printf("  %s: %v\n", k, v)
	}
	for k, v := range final.Artifacts {
		fmt.Printf("  %s: %s\n", k, v)
	}
	return nil
}
