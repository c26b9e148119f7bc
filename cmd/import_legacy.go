package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
)

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy",
	Short: "Import classes and students from the legacy MySQL database",
	Long: `Copy classes, students and enrollments from the legacy MySQL/MariaDB
deployment into the configured store. Running it again updates existing rows.

Stored face descriptors are kept only when their length matches EMBEDDING_DIM;
students with descriptors from another model must register again.`,
	Example: `  face-attendance import-legacy --dsn 'user:pass@tcp(db:3306)/attendance'`,
	Args:    cobra.NoArgs,
	RunE:    runImportLegacy,
}

func init() {
	rootCmd.AddCommand(importLegacyCmd)

	importLegacyCmd.Flags().String("dsn", "", "Legacy MySQL DSN (overrides LEGACY_DATABASE_URL)")
}

func runImportLegacy(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dsn := mustGetString(cmd, "dsn")
	if dsn == "" {
		dsn = cfg.Legacy.DatabaseURL
	}
	if dsn == "" {
		return errors.New("LEGACY_DATABASE_URL or --dsn is required")
	}

	ctx := context.Background()

	fmt.Printf("Connecting to legacy database...\n")
	legacy, err := mariadb.NewPool(dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to legacy database: %w", err)
	}
	defer legacy.Close()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Importing classes"),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
	)
	stats, err := mariadb.Import(ctx, legacy, store, mariadb.ImportOptions{
		EmbeddingDim: cfg.Embedding.Dim,
		OnClass: func(class mariadb.LegacyClass, students int) {
			bar.Describe(fmt.Sprintf("Imported %s (%d students)", class.Code, students))
			bar.Add(1)
		},
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Classes:      %d\n", stats.Classes)
	fmt.Printf("Students:     %d\n", stats.Students)
	fmt.Printf("Enrollments:  %d\n", stats.Enrollments)
	fmt.Printf("Faces kept:   %d\n", stats.Descriptors)
	if stats.DroppedDescriptors > 0 {
		fmt.Printf("Faces dropped: %d (different embedding model, students must re-register)\n", stats.DroppedDescriptors)
	}
	return nil
}
