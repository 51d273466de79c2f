package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/db"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/migrations"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/report"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

func (a *app) request(ctx context.Context) (estimate.Request, error) {
	req := estimate.Request{
		Length: a.length,
		Width:  a.width,
		Labor:  pricing.LaborParams{Workers: a.workers, DailyWage: a.dailyWage},
		Budget: pricing.BudgetParams{MarginPercent: a.margin, TaxEnabled: a.tax > 0, TaxPercent: a.tax},
	}
	if a.depth != 0 {
		d := layout.DepthClass(a.depth)
		if !d.Valid() {
			return req, fmt.Errorf("depth must be 15, 20 or 25, got %d", a.depth)
		}
		req.Options.Distribution = map[layout.DepthClass]int{d: 1}
	}
	prices, err := a.prices(ctx)
	if err != nil {
		return req, err
	}
	req.Prices = prices
	return req, nil
}

// prices reads --prices when given, otherwise the table stored in the local
// database. A database that does not exist yet means no prices.
func (a *app) prices(ctx context.Context) (pricing.PriceTable, error) {
	if a.pricesPath != "" {
		return pricing.LoadPrices(a.pricesPath)
	}
	if _, err := os.Stat(a.dbPath); errors.Is(err, fs.ErrNotExist) {
		return pricing.PriceTable{}, nil
	}

	database, err := a.openDB(ctx)
	if err != nil {
		return pricing.PriceTable{}, err
	}
	defer database.Close()
	return store.New(database).Prices(ctx)
}

func (a *app) run(ctx context.Context) (estimate.Estimate, error) {
	req, err := a.request(ctx)
	if err != nil {
		return estimate.Estimate{}, err
	}
	return estimate.Run(req)
}

func (a *app) planCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Position joists and vault pieces for a slab",
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := a.run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndented(out, est.Layout)
			}
			printLayout(out, est.Layout)
			return nil
		},
	}
	a.slabFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full layout as JSON")
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the system against a solid slab",
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := a.run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeIndented(out, est.Comparison)
			}
			printComparison(out, est.Comparison, a.cfg.Currency)
			return nil
		},
	}
	a.slabFlags(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the comparison as JSON")
	return cmd
}

func (a *app) budgetCmd() *cobra.Command {
	var project, client string
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Print the client budget as plain text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := a.run(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteText(cmd.OutOrStdout(), report.Header{Project: project, Client: client, Currency: a.cfg.Currency}, est)
		},
	}
	a.slabFlags(cmd)
	cmd.Flags().StringVar(&project, "project", "", "project name for the header")
	cmd.Flags().StringVar(&client, "client", "", "client name for the header")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var format, output, project, client string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the estimate as text or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := a.run(cmd.Context())
			if err != nil {
				return err
			}
			header := report.Header{Project: project, Client: client, Currency: a.cfg.Currency}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			switch strings.ToLower(format) {
			case "text", "txt":
				return report.WriteText(w, header, est)
			case "xlsx":
				if output == "" {
					return errors.New("xlsx export needs --output")
				}
				return report.WriteXLSX(w, header, est)
			default:
				return fmt.Errorf("unknown format %q, use text or xlsx", format)
			}
		},
	}
	a.slabFlags(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "text or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout when empty)")
	cmd.Flags().StringVar(&project, "project", "", "project name for the header")
	cmd.Flags().StringVar(&client, "client", "", "client name for the header")
	return cmd
}

// saveCmd stores the calculation in the local database and queues the project
// and the calculation for the next sync.
func (a *app) saveCmd() *cobra.Command {
	var project, client, location string
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the calculation locally and queue it for sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			est, err := a.run(cmd.Context())
			if err != nil {
				return err
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			st := store.New(database)
			outbox := offline.New(database, nil, offline.Options{Logger: a.log.Logger})

			p, created, err := findOrCreateProject(ctx, st, store.Project{Name: project, Client: client, Location: location})
			if err != nil {
				return err
			}
			if created {
				if _, err := outbox.Enqueue(ctx, p.ID, offline.KindProject, p); err != nil {
					return err
				}
			}

			calc, err := st.SaveCalculation(ctx, p.ID, est)
			if err != nil {
				return err
			}
			if _, err := outbox.Enqueue(ctx, calc.ID, offline.KindCalculation, calc); err != nil {
				return err
			}

			pending, err := outbox.Len(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved calculation %s in project %q (%d pending sync)\n", calc.ID, p.Name, pending)
			return nil
		},
	}
	a.slabFlags(cmd)
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringVar(&client, "client", "", "client name")
	cmd.Flags().StringVar(&location, "location", "", "site location")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) syncCmd() *cobra.Command {
	var (
		remote  string
		brokers []string
		topic   string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send queued records to the server or to Kafka",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var (
				sender offline.Sender
				ping   func(context.Context) error
			)
			switch {
			case remote != "":
				h := offline.NewHTTPSender(remote)
				sender, ping = h, h.Ping
			case len(brokers) > 0:
				k := offline.NewKafkaSender(brokers, topic)
				defer k.Close()
				sender = k
			default:
				return errors.New("set --remote or --brokers")
			}

			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			outbox := offline.New(database, sender, offline.Options{Logger: a.log.Logger, StartOnline: true})
			if ping != nil {
				if err := ping(ctx); err != nil {
					return fmt.Errorf("%w: %v", offline.ErrOffline, err)
				}
			}

			res, err := outbox.Flush(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, pending %d\n", res.Sent, res.Remaining)
			return err
		},
	}
	cmd.Flags().StringVar(&remote, "remote", a.cfg.SyncRemoteURL, "server base URL")
	cmd.Flags().StringSliceVar(&brokers, "brokers", a.cfg.SyncKafkaBrokers, "Kafka brokers")
	cmd.Flags().StringVar(&topic, "topic", a.cfg.SyncKafkaTopic, "Kafka topic")
	return cmd
}

func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	database, err := db.Open(a.dbPath)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, database); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

// findOrCreateProject matches projects by exact name, ignoring case.
func findOrCreateProject(ctx context.Context, st *store.Store, p store.Project) (store.Project, bool, error) {
	name := strings.TrimSpace(p.Name)
	existing, err := st.ListProjects(ctx, name)
	if err != nil {
		return store.Project{}, false, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Name, name) {
			return e, false, nil
		}
	}
	created, err := st.CreateProject(ctx, p)
	if err != nil {
		return store.Project{}, false, err
	}
	return created, true, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printLayout(w io.Writer, l layout.Result) {
	fmt.Fprintf(w, "slab %.2f x %.2f m, clear span %.2f m, depth %d cm\n", l.Length, l.Width, l.ShortestSide, l.Depth)
	fmt.Fprintf(w, "joists: %d at %.3f m spacing, %.2f m each, stock %v (%d splices, %.1f%% waste)\n",
		l.Totals.Joists, l.Spacing, l.ShortestSide, l.Stock.Bars, l.Stock.Splices, l.WastePercent)
	fmt.Fprintf(w, "vault rows: %d, pieces: %d full + %d adjustment\n",
		len(l.Rows), l.Totals.FullVaultPieces, l.Totals.AdjustmentPieces)
	fmt.Fprintf(w, "mesh: %.2f m2\n", l.Totals.MeshArea)
	for _, rec := range l.Recommendations {
		fmt.Fprintf(w, "* %s\n", rec)
	}
}

func printComparison(w io.Writer, c pricing.Comparison, currency string) {
	fmt.Fprintf(w, "%-10s %14s %14s %10s\n", "", "traditional", "system", "saving")
	fmt.Fprintf(w, "%-10s %14.2f %14.2f %9.1f%%\n", "concrete", c.Traditional.ConcreteVolume, c.System.ConcreteVolume, c.Savings.ConcretePercent)
	fmt.Fprintf(w, "%-10s %14.2f %14.2f %9.1f%%\n", "cost", c.Traditional.Costs.Total, c.System.Costs.Total, c.Savings.CostPercent)
	fmt.Fprintf(w, "%-10s %14.0f %14.0f %9.1f%%\n", "weight", c.Traditional.Weight, c.System.Weight, c.Savings.WeightPercent)
	fmt.Fprintf(w, "%-10s %14d %14d %9.1f%%\n", "days", c.Traditional.Days, c.System.Days, c.Savings.TimePercent)
	if c.Capped {
		fmt.Fprintf(w, "system cost capped at 70%% of traditional (uncapped %.2f %s)\n", c.UncappedSystemTotal, currency)
	}
}
