package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"coinwatch/config"
	"coinwatch/internal/db"
	"coinwatch/internal/logs"
	"coinwatch/internal/reporting"
	"coinwatch/internal/seed"
	"coinwatch/internal/store"
	"coinwatch/server"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "coinwatch",
		Short:         "Telemetry reports and analytics for coin-operated machines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./coinwatch.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newExportCmd(load),
		newSeedCmd(load),
		newMigrateCmd(load),
	)
	return root
}

type loader func() (*config.Config, error)

func newServeCmd(load loader) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and MQTT ingestion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app := &server.App{}
			if err := app.Initialize(cfg, server.Options{SeedDemo: demo}); err != nil {
				app.Close()
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "load the sample fleet and a month of events at startup")
	return cmd
}

func newExportCmd(load loader) *cobra.Command {
	var device, start, end, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one device's events as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			st, err := server.OpenStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			adapter := store.NewAdapter(st.Events, store.WithLocation(loc), store.WithMaxResults(cfg.Reports.MaxResults))
			svc := reporting.NewService(adapter, st.Roster, reporting.Options{
				DefaultField:    cfg.Reports.DefaultField,
				TimestampLayout: cfg.Reports.TimestampLayout,
			})
			ex, err := svc.Export(ctx, reporting.Query{DeviceID: device, StartDate: start, EndDate: end})
			if err != nil {
				return err
			}

			if out == "" {
				out = ex.Filename
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(append(ex.Body(), '\n'))
				return err
			}
			if err := os.WriteFile(out, ex.Body(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logs.Logger.WithField("file", out).WithField("rows", len(ex.Table.Rows)).Info("export written")
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "device id")
	cmd.Flags().StringVar(&start, "start", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file ("-" for stdout, default reports_<device>_<start>_<end>.csv)`)
	_ = cmd.MarkFlagRequired("device")
	return cmd
}

func newSeedCmd(load loader) *cobra.Command {
	var days int
	var devicesOnly bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register the sample fleet and generate synthetic events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "" || cfg.Store.Backend == config.BackendMemory {
				return fmt.Errorf("seed needs database.driver and a persistent store.backend; use serve --demo in memory mode")
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			st, err := server.OpenStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := seed.Run(cmd.Context(), st.Devices, st.Writer, seed.Options{
				Days:   days,
				Loc:    loc,
				Seed:   uint64(time.Now().UnixNano()),
				Events: !devicesOnly,
			})
			if err != nil {
				return err
			}
			logs.Logger.WithField("devices", res.Devices).WithField("events", res.Events).Info("seed done")
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "days of history to generate")
	cmd.Flags().BoolVar(&devicesOnly, "devices-only", false, "register devices without events")
	return cmd
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "" {
				return fmt.Errorf("database.driver is not set")
			}
			d, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			if err := db.Migrate(d); err != nil {
				return err
			}
			logs.Logger.Info("migrations applied")
			return nil
		},
	}
}
