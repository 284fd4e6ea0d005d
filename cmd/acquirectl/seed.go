package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-acquisition-service/internal/app"
	"github.com/helixir/paper-acquisition-service/internal/config"
)

var seedCmd = &cobra.Command{
	Use:   "seed-sources",
	Short: "Create or update sources from a YAML definition file",
	Long: `Seed-sources upserts every source of the YAML file by name. Existing
sources keep their current priority, which belongs to the priority
adjuster once a source has been created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Sources.SeedFile
		}
		sources, err := config.LoadSources(path)
		if err != nil {
			return err
		}

		return withCore(cmd, func(ctx context.Context, core *app.App) error {
			for i := range sources {
				if err := core.Sources.Upsert(ctx, &sources[i]); err != nil {
					return fmt.Errorf("seeding %s: %w", sources[i].Name, err)
				}
				logger.Info().Str("source", sources[i].Name).Msg("source seeded")
			}
			fmt.Printf("seeded %d sources from %s\n", len(sources), path)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().String("file", "", "source definition file (default: sources.seed_file)")
	rootCmd.AddCommand(seedCmd)
}
