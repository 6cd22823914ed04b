package main

import (
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sunat-tools/ruc-resolver/internal/resolver"
)

var resolveWorkers int

var resolveCmd = &cobra.Command{
	Use:   "resolve [batch-size]",
	Short: "Resolve pending RUCs against the backend chain",
	Long:  "Runs one pass over the pending set. The optional positional argument caps how many identifiers are pulled; omit it to process everything. Identifiers the pass could not settle stay pending for the next run.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if resolveWorkers > 0 {
			cfg.Pipeline.Workers = resolveWorkers
		}
		batchSize := cfg.Pipeline.BatchSize
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return eris.Errorf("batch size must be a positive integer, got %q", args[0])
			}
			batchSize = n
		}

		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		usable := 0
		for _, b := range cfg.Backends {
			if b.Usable() {
				usable++
			}
		}
		if usable == 0 {
			return eris.New("no usable backends: every configured backend is missing its credential")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		chain := resolver.NewChainFromConfigs(cfg.Backends)
		engine := resolver.NewEngine(st, chain, cfg.Pipeline.Workers, cfg.Pipeline.ProgressEvery)

		// Exhausted identifiers are not an error: the pass completed and
		// they stay pending. Only infrastructure failures reach here.
		_, err = engine.Run(ctx, batchSize)
		return err
	},
}

func init() {
	resolveCmd.Flags().IntVar(&resolveWorkers, "workers", 0, "concurrent workers (default from config)")
	rootCmd.AddCommand(resolveCmd)
}
