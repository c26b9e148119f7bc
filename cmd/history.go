package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
)

var historyCmd = &cobra.Command{
	Use:   "history <class-id>",
	Short: "Show attendance records of a class",
	Long:  `Lists the class's attendance records newest first with present and absent students.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of records")
	historyCmd.Flags().Bool("absent", false, "List absent students")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	classID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := attendance.NewHistory(store, store).List(ctx, classID, mustGetInt(cmd, "limit"))
	if err != nil {
		return fmt.Errorf("failed to list attendance: %w", err)
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("No attendance recorded for %s\n", classID)
		return nil
	}

	showAbsent := mustGetBool(cmd, "absent")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if showAbsent {
		fmt.Fprintln(w, "DATE\tPRESENT\tABSENT\tABSENTEES")
		fmt.Fprintln(w, "----\t-------\t------\t---------")
	} else {
		fmt.Fprintln(w, "DATE\tPRESENT\tABSENT")
		fmt.Fprintln(w, "----\t-------\t------")
	}
	for _, e := range entries {
		date := e.Timestamp.Local().Format("2006-01-02 15:04")
		if showAbsent {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", date, len(e.Present), len(e.Absent), studentNames(e.Absent))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", date, len(e.Present), len(e.Absent))
	}
	w.Flush()
	return nil
}

func studentNames(refs []attendance.StudentRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.DisplayName)
	}
	return strings.Join(names, ", ")
}
