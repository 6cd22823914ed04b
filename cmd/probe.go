package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sunat-tools/ruc-resolver/internal/backend"
	"github.com/sunat-tools/ruc-resolver/internal/model"
	"github.com/sunat-tools/ruc-resolver/internal/resolver"
)

// probeRUCs are well-known identifiers with stable registry answers.
var probeRUCs = []model.RUC{"20131312955", "20100070970", "10411592982"}

var probeCmd = &cobra.Command{
	Use:   "probe [ruc...]",
	Short: "Exercise each configured backend against known RUCs",
	Long:  "Looks up each identifier on every usable backend directly, bypassing the chain, so a misbehaving registry is visible in isolation. Without arguments a built-in set of well-known RUCs is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rucs := probeRUCs
		if len(args) > 0 {
			rucs = rucs[:0]
			for _, a := range args {
				ruc, err := model.ParseRUC(a)
				if err != nil {
					return eris.Wrapf(err, "probe %s", a)
				}
				rucs = append(rucs, ruc)
			}
		}

		gates := resolver.NewGates(cfg.Backends)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND\tRUC\tSTATUS\tRAZON SOCIAL")
		for _, bc := range cfg.Backends {
			ad := backend.New(bc)
			if !ad.Usable() {
				fmt.Fprintf(w, "%s\t-\tskipped (no credential)\t-\n", bc.Name)
				continue
			}
			for _, ruc := range rucs {
				if err := gates.Wait(ctx, bc.Name); err != nil {
					return err
				}
				res := ad.Lookup(ctx, ruc)
				value := res.Value
				if value == "" {
					value = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", bc.Name, ruc, res.Status, value)
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
