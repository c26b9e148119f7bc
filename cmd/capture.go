package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/geofence"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var captureCmd = &cobra.Command{
	Use:   "capture <class-id> <image> [image...]",
	Short: "Take attendance from classroom photos",
	Long: `Scan one or more classroom photos for registered faces of the class roster.

Every matched student is marked present. Without --submit the result is only
printed; with --submit it is stored as an attendance record.`,
	Example: `  face-attendance capture cs101 front.jpg back.jpg
  face-attendance capture cs101 room.jpg --submit --lat 12.9716 --long 77.5946`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().Bool("submit", false, "Store the attendance record")
	captureCmd.Flags().Float64("lat", 0, "Latitude of the submitter for the geofence check")
	captureCmd.Flags().Float64("long", 0, "Longitude of the submitter for the geofence check")
	captureCmd.Flags().Bool("json", false, "Output as JSON")
}

// submitterLocation returns the location only when both flags were given.
func submitterLocation(cmd *cobra.Command) *geofence.Coordinate {
	if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("long") {
		return nil
	}
	return &geofence.Coordinate{Lat: mustGetFloat64(cmd, "lat"), Long: mustGetFloat64(cmd, "long")}
}

type captureOutput struct {
	Session attendance.Info            `json:"session"`
	Results []attendance.StillResult   `json:"results"`
	Record  *database.AttendanceRecord `json:"record,omitempty"`
}

func runCapture(cmd *cobra.Command, args []string) error {
	classID, files := args[0], args[1:]
	submit := mustGetBool(cmd, "submit")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	det := newDetector(cfg)
	if det == nil {
		return errors.New("EMBEDDING_URL is required for capture")
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := newManager(store, det, cfg)
	sess, err := manager.Open(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	if !sess.State.AIAvailable() {
		_ = manager.Cancel(sess.ID)
		return fmt.Errorf("class %s: %w", classID, session.ErrAIUnavailable)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetVisibility(!jsonOutput),
	)

	var results []attendance.StillResult
	var scanErrors []string
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			scanErrors = append(scanErrors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			bar.Add(1)
			continue
		}
		res, err := manager.ScanStills(ctx, sess.ID, [][]byte{data})
		if err != nil {
			_ = manager.Cancel(sess.ID)
			return fmt.Errorf("scan %s: %w", path, err)
		}
		for _, r := range res {
			r.Index = i
			if r.Error != "" {
				scanErrors = append(scanErrors, fmt.Sprintf("%s: %s", filepath.Base(path), r.Error))
			}
			results = append(results, r)
		}
		bar.Add(1)
	}
	bar.Finish()

	out := captureOutput{Results: results}

	if submit {
		record, err := manager.Submit(ctx, sess.ID, submitterLocation(cmd))
		if err != nil {
			// a rejected submission leaves the session open; nothing else uses it
			_ = manager.Cancel(sess.ID)
			return fmt.Errorf("failed to submit attendance: %w", err)
		}
		out.Record = record
	} else {
		_ = manager.Cancel(sess.ID)
	}
	out.Session = sess.Info("")

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println()
	for _, e := range scanErrors {
		fmt.Printf("Warning: %s\n", e)
	}
	printRoster(out.Session.Snapshot)

	if submit {
		fmt.Printf("\nAttendance recorded: %d of %d present\n", out.Session.Snapshot.PresentCount, out.Session.Snapshot.TotalCount)
	} else {
		fmt.Printf("\n%d of %d present. Use --submit to store the record.\n", out.Session.Snapshot.PresentCount, out.Session.Snapshot.TotalCount)
	}
	return nil
}

func printRoster(snap session.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tNAME\tFACE\tPRESENT")
	fmt.Fprintln(w, "----\t----\t----\t-------")
	for _, st := range snap.Students {
		face, present := "", ""
		if st.FaceRegistered {
			face = "yes"
		}
		if st.Present {
			present = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.RollNo, st.DisplayName, face, present)
	}
	w.Flush()
}
