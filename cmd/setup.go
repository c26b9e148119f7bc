package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/detector"
)

// openStore connects to PostgreSQL when DATABASE_URL is set, otherwise opens
// the SQLite file at SQLITE_PATH. The store is registered as the active backend.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	if cfg.Database.UsesPostgres() {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		store, err := postgres.Initialize(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return store, nil
	}

	fmt.Printf("Using SQLite database %s\n", cfg.Database.SQLitePath)
	store, err := sqlite.Initialize(ctx, cfg.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	return store, nil
}

// newDetector returns the embedding service client, or nil when no service is
// configured. Without a detector sessions fall back to manual marking.
func newDetector(cfg *config.Config) detector.Detector {
	if cfg.Embedding.URL == "" {
		return nil
	}
	return detector.NewClient(cfg.Embedding.URL, cfg.Embedding.Dim)
}

func managerConfig(cfg *config.Config) attendance.Config {
	return attendance.Config{
		Threshold:             cfg.Matching.Threshold,
		ConfirmationThreshold: cfg.Matching.ConfirmationThreshold,
		StickyOverrides:       cfg.Matching.StickyOverrides,
		SampleInterval:        cfg.Capture.SampleInterval,
		DetectTimeout:         cfg.Capture.DetectTimeout,
		MinScore:              cfg.Capture.MinDetectionScore,
		StillMinScore:         cfg.Capture.StillMinDetectionScore,
		MaxImageSize:          constants.MaxImageSize,
	}
}

// newManager wires a session manager over the store
func newManager(store database.Store, det detector.Detector, cfg *config.Config) *attendance.Manager {
	return attendance.NewManager(store, store, attendance.NewRecorder(store, store), det, managerConfig(cfg))
}

// newRegistrar returns nil without an embedding service
func newRegistrar(store database.Store, det detector.Detector, cfg *config.Config) *attendance.Registrar {
	if det == nil {
		return nil
	}
	return attendance.NewRegistrar(det, store, cfg.Capture.StillMinDetectionScore, constants.MaxImageSize)
}
