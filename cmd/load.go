package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sunat-tools/ruc-resolver/internal/db"
	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load <file.csv>",
	Short: "Load RUC identifiers into the lookup table",
	Long:  "Reads identifiers from the first CSV column, one per row. A header row and rows that are not valid 11-digit RUCs are skipped with a warning. Postgres ingests via COPY; SQLite via a single insert transaction.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("load"); err != nil {
			return err
		}

		rucs, err := readRUCs(args[0])
		if err != nil {
			return err
		}
		if len(rucs) == 0 {
			return eris.Errorf("no valid RUCs in %s", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var loaded int64
		switch s := st.(type) {
		case *store.PostgresStore:
			rows := make([][]any, len(rucs))
			for i, r := range rucs {
				rows[i] = []any{r.String()}
			}
			loaded, err = db.CopyFrom(ctx, s.Pool(), "ruc_lookup", []string{"ruc"}, rows)
		case *store.SQLiteStore:
			loaded, err = s.Seed(ctx, rucs)
		default:
			return eris.New("load: store does not support bulk ingest")
		}
		if err != nil {
			return eris.Wrap(err, "load identifiers")
		}

		zap.L().Info("loaded identifiers",
			zap.String("file", args[0]),
			zap.Int64("rows", loaded),
		)
		return nil
	},
}

// readRUCs parses the first column of a CSV file, dropping invalid rows.
func readRUCs(path string) ([]model.RUC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rucs []model.RUC
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read %s", path)
		}
		line++
		if len(rec) == 0 {
			continue
		}
		ruc, err := model.ParseRUC(rec[0])
		if err != nil {
			if line > 1 {
				zap.L().Warn("skipping invalid row",
					zap.Int("line", line),
					zap.String("value", rec[0]),
				)
			}
			continue
		}
		rucs = append(rucs, ruc)
	}
	return rucs, nil
}
