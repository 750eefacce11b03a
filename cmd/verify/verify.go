// Package verify implements the verify subcommand, which samples recently
// modified source products for manual spot-checking against the target.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/logging"
	"github.com/cartbridge/cartbridge/internal/migration"
	"github.com/cartbridge/cartbridge/internal/sourcedb"
)

// Command creates the verify command.
func Command(settings *conf.Settings) *cobra.Command {
	var sampleSize int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Sample recently modified source products",
		Long:  "Fetch the most recently modified products from the legacy database and print them as JSON for spot-checking against the target catalog.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), settings, sampleSize)
		},
	}

	cmd.Flags().IntVar(&sampleSize, "sample", viper.GetInt("migration.verifysamplesize"), "Number of source records to sample")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runVerify(ctx context.Context, settings *conf.Settings, sampleSize int) error {
	if sampleSize <= 0 {
		sampleSize = 100
	}

	source, err := sourcedb.New(&settings.Source, logging.ForService("verify"))
	if err != nil {
		return err
	}
	defer source.Close()

	records, err := source.FetchRecentlyModified(ctx, sampleSize)
	if err != nil {
		return err
	}

	entries := make([]migration.VerificationEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, migration.VerificationEntry{
			ProductID:    rec.ProductID,
			Name:         rec.Name,
			Model:        rec.Model,
			SKU:          rec.SKU,
			Price:        rec.Price,
			Quantity:     rec.Quantity,
			DateModified: rec.DateModified,
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
