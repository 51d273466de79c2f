// Command estructura is the field tool: it plans slabs, prints budgets and
// keeps an offline copy of saved calculations that it syncs when a
// connection is available.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/config"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/logging"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the flags shared by every subcommand.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	logLevel string

	dbPath     string
	pricesPath string
	length     float64
	width      float64
	depth      int
	workers    int
	dailyWage  float64
	margin     float64
	tax        float64
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:          "estructura",
		Short:        "Joist-and-vault slab planner and estimator",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(cmd.ErrOrStderr(), a.logLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			a.log = logger
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.log.Close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.dbPath, "db", cfg.DBPath, "local SQLite database")
	pf.StringVar(&a.pricesPath, "prices", cfg.PricesFile, "YAML price table")
	pf.StringVar(&a.logLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")

	root.AddCommand(
		a.planCmd(),
		a.compareCmd(),
		a.budgetCmd(),
		a.exportCmd(),
		a.saveCmd(),
		a.syncCmd(),
	)
	return root
}

// slabFlags registers the dimension and crew flags on cmd.
func (a *app) slabFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64VarP(&a.length, "length", "l", 0, "slab length in metres")
	f.Float64VarP(&a.width, "width", "w", 0, "slab width in metres")
	f.IntVar(&a.depth, "depth", 0, "force a depth class (15, 20 or 25)")
	f.IntVar(&a.workers, "workers", a.cfg.DefaultWorkers, "crew size")
	f.Float64Var(&a.dailyWage, "daily-wage", 0, "daily wage per worker")
	f.Float64Var(&a.margin, "margin", 0, "margin percent")
	f.Float64Var(&a.tax, "tax", 0, "tax percent, 0 disables tax")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("width")
}
