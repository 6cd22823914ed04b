package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sunat-tools/ruc-resolver/internal/store"
)

var (
	statusWatch    bool
	statusInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show resolution progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var prev *store.Stats
		var prevAt time.Time
		for {
			stats, err := st.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(stats, prev, time.Since(prevAt))
			if !statusWatch {
				return nil
			}
			prev = stats
			prevAt = time.Now()

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(statusInterval):
			}
		}
	},
}

func printStats(s, prev *store.Stats, sincePrev time.Duration) {
	done := s.Resolved + s.Absent
	pct := 0.0
	if s.TotalRows > 0 {
		pct = float64(done) / float64(s.TotalRows) * 100
	}

	fmt.Printf("[%s] total=%d resolved=%d absent=%d pending=%d (%d unique) %.1f%% done\n",
		time.Now().Format("15:04:05"),
		s.TotalRows, s.Resolved, s.Absent, s.Pending, s.UniquePending, pct)

	// With a previous sample we can estimate throughput and time remaining.
	if prev != nil && sincePrev > 0 {
		delta := (s.Resolved + s.Absent) - (prev.Resolved + prev.Absent)
		if delta > 0 {
			perMin := float64(delta) / sincePrev.Minutes()
			eta := time.Duration(float64(s.UniquePending)/perMin) * time.Minute
			fmt.Printf("  rate=%.1f/min eta=%s\n", perMin, eta.Round(time.Minute))
		} else {
			fmt.Fprintln(os.Stderr, "  no progress since last sample")
		}
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusWatch, "watch", false, "keep sampling until interrupted")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", 30*time.Second, "sampling interval in watch mode")
	rootCmd.AddCommand(statusCmd)
}
