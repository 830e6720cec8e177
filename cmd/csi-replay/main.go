// CSI Replay - Utility to inspect and re-render recorded CSI sessions
// This program reads sessions recorded by csi-monitor --record and prints
// per-subcarrier statistics or redraws the plots from the stored frames.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"csi-monitor/internal/csi"
	"csi-monitor/internal/render"
	"csi-monitor/internal/storage"
	"csi-monitor/internal/version"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	dbPath       string
	listSessions bool
	sessionID    string
	pngFile      string
	waterfall    string
	showASCII    bool
	showStats    bool
	outputFormat string
	showVersion  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "csi-replay",
	Short: "Inspect recorded CSI sessions",
	Long: `CSI Replay reads sessions recorded by csi-monitor into SQLite.

Display modes:
  --list       List recorded sessions
  --stats      Show per-subcarrier magnitude statistics
  --png        Redraw the last frame of the session as a PNG plot
  --waterfall  Redraw the session as a waterfall image
  --ascii      Draw the last frame on the terminal`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("CSI Replay"))
			return
		}

		if err := run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
	rootCmd.Flags().StringVar(&dbPath, "db", "csi.db", "SQLite database path")
	rootCmd.Flags().BoolVarP(&listSessions, "list", "l", false, "list recorded sessions")
	rootCmd.Flags().StringVarP(&sessionID, "session", "s", "", "session to replay (default is the most recent)")
	rootCmd.Flags().StringVar(&pngFile, "png", "", "write the last frame as a PNG plot")
	rootCmd.Flags().StringVar(&waterfall, "waterfall", "", "write the session as a waterfall PNG")
	rootCmd.Flags().BoolVar(&showASCII, "ascii", false, "draw the last frame as an ASCII plot")
	rootCmd.Flags().BoolVar(&showStats, "stats", true, "show per-subcarrier statistics")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "statistics format (table, json, csv)")
}

// statsFormats are the accepted --format values
var statsFormats = map[string]bool{"table": true, "json": true, "csv": true}

func run(ctx context.Context) error {
	if !statsFormats[outputFormat] {
		return fmt.Errorf("unknown format: %s (must be table, json, or csv)", outputFormat)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database not found: %s", dbPath)
	}

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	if listSessions {
		return displaySessions(ctx, store)
	}

	session, err := selectSession(ctx, store)
	if err != nil {
		return err
	}

	frames, err := store.Frames(ctx, session.ID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("session %s has no frames", session.ID)
	}

	if outputFormat == "table" {
		fmt.Printf("CSI REPLAY %s\n\n", version.GetFullVersion())
		displaySession(session)
	}

	last := frames[len(frames)-1]

	if pngFile != "" {
		if err := render.NewPlot(pngFile, 800, 480).Render(last); err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
		fmt.Printf("Plot written to %s\n", pngFile)
	}

	if waterfall != "" {
		wf, err := render.NewWaterfall(waterfall, len(frames), 4)
		if err != nil {
			return err
		}
		for _, f := range frames[:len(frames)-1] {
			wf.Push(f)
		}
		if err := wf.Render(last); err != nil {
			return fmt.Errorf("failed to write waterfall: %w", err)
		}
		fmt.Printf("Waterfall written to %s\n", waterfall)
	}

	if showASCII {
		if err := render.NewASCII(os.Stdout, 16, false).Render(last); err != nil {
			return err
		}
	}

	if showStats {
		return displayStatistics(csi.Summarize(frames))
	}
	return nil
}

// selectSession returns the requested session, or the latest one
func selectSession(ctx context.Context, store *storage.SqliteStore) (*storage.Session, error) {
	if sessionID != "" {
		session, err := store.Session(ctx, sessionID)
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("no session %s in %s", sessionID, dbPath)
		}
		return session, err
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions recorded in %s", dbPath)
	}
	return &sessions[len(sessions)-1], nil
}

func displaySessions(ctx context.Context, store *storage.SqliteStore) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %10s  %s\n", "SESSION", "STARTED", "FRAMES", "SOURCE")
	for _, s := range sessions {
		fmt.Printf("%-36s  %-19s  %10s  %s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Comma(s.Frames),
			s.Source)
	}
	return nil
}

func displaySession(s *storage.Session) {
	fmt.Printf("Session Information:\n")
	fmt.Printf("ID: %s\n", s.ID)
	fmt.Printf("Source: %s", s.Source)
	if s.BaudRate > 0 {
		fmt.Printf(" @ %d baud", s.BaudRate)
	}
	fmt.Printf("\nStarted: %s (%s)\n", s.StartedAt.Local().Format(time.RFC3339), humanize.Time(s.StartedAt))
	fmt.Printf("Frames: %s\n\n", humanize.Comma(s.Frames))
}

func displayStatistics(sum csi.Summary) error {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		w.Write([]string{"subcarrier", "mean", "stddev", "max"})
		for i, idx := range sum.Indices {
			w.Write([]string{
				strconv.Itoa(idx),
				strconv.FormatFloat(sum.Mean[i], 'f', 4, 64),
				strconv.FormatFloat(sum.StdDev[i], 'f', 4, 64),
				strconv.FormatFloat(sum.Max[i], 'f', 4, 64),
			})
		}
		w.Flush()
		return w.Error()
	}

	fmt.Printf("Magnitude Statistics (%s frames):\n", humanize.Comma(int64(sum.Frames)))
	fmt.Printf("%10s  %10s  %10s  %10s\n", "SUBCARRIER", "MEAN", "STDDEV", "MAX")
	for i, idx := range sum.Indices {
		fmt.Printf("%10d  %10.3f  %10.3f  %10.3f\n", idx, sum.Mean[i], sum.StdDev[i], sum.Max[i])
	}
	fmt.Printf("\nPeak: %.3f at subcarrier %d\n", sum.Peak.Magnitude, sum.Peak.Index)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
