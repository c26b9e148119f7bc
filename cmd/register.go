package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var registerCmd = &cobra.Command{
	Use:   "register <student-id> <image> [image...]",
	Short: "Register a student's face from photos",
	Long: fmt.Sprintf(`Register a student's face from at least %d photos.

The largest face in each photo is embedded and the mean embedding replaces any
previously registered face. Photos without a clear face are skipped.`, constants.MinRegistrationSamples),
	Args: cobra.MinimumNArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	studentID, files := args[0], args[1:]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	det := newDetector(cfg)
	if det == nil {
		return errors.New("EMBEDDING_URL is required for registration")
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Loading"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionFullWidth(),
	)
	images := make([][]byte, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		images = append(images, data)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Println()

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := newRegistrar(store, det, cfg).Register(ctx, studentID, images)
	if result != nil {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tFACES\tSCORE\tUSED")
		fmt.Fprintln(w, "----\t-----\t-----\t----")
		for _, s := range result.Samples {
			note := "yes"
			switch {
			case !s.Used:
				note = s.Error
			case s.DuplicateOf != nil:
				note = "yes, same photo as " + filepath.Base(files[*s.DuplicateOf])
			}
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\n", filepath.Base(files[s.Index]), s.Faces, s.Score, note)
		}
		w.Flush()
	}
	if errors.Is(err, facematch.ErrNotEnoughSamples) {
		return fmt.Errorf("registration failed, retake photos with one clear face each: %w", err)
	}
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Printf("\nRegistered face of %s from %d photos\n", studentID, result.FacesProcessed)
	return nil
}
