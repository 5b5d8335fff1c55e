package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"orcacast/adapters/excel"
	"orcacast/adapters/postgres"
	"orcacast/app"
	"orcacast/domain/environment"
	"orcacast/domain/forecast"
	"orcacast/internal"
	"orcacast/internal/config"
	"orcacast/internal/container"
	"orcacast/internal/migration"
	"orcacast/internal/report"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var equations string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "orcacast-cli",
		Short: "Behavior forecasting from the command line",
		Long: `Load behavior equations and run live predictions or forecast grids without
starting the API server. Configuration is read from the environment (and .env);
flags override it.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&equations, "equations", "", "Equation source (file path, URL or 'postgres'); overrides EQUATIONS_SOURCE")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	setup := func(ctx context.Context) (*container.Container, error) {
		if equations != "" {
			os.Setenv("EQUATIONS_SOURCE", equations)
		}
		level := internal.LogLevelWarn
		if verbose {
			level = internal.LogLevelDebug
		}
		return newContainer(ctx, internal.NewLogger(level))
	}

	rootCmd.AddCommand(
		newBehaviorsCmd(setup),
		newPredictCmd(setup),
		newGridCmd(setup),
		newImportCmd(),
		newMigrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type setupFunc func(ctx context.Context) (*container.Container, error)

func newContainer(ctx context.Context, logger *internal.Logger) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.ConnectDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func newBehaviorsCmd(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "behaviors",
		Short: "List the loaded behavior equations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			snap, err := c.Registry.Snapshot()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "equations %s from %s\n", snap.Version().Short(), snap.Source())
			for _, label := range snap.Behaviors() {
				eq, err := snap.Equation(label)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-14s logit = %s  (uncertainty %.3g)\n", label, eq.String(), eq.UncertaintyScale)
			}
			return nil
		},
	}
}

func newPredictCmd(setup setupFunc) *cobra.Command {
	var envFlags map[string]string
	var behavior string
	var at string
	var explain bool

	cmd := &cobra.Command{
		Use:   "predict [latitude] [longitude]",
		Short: "Predict behavior probabilities at one location",
		Long: `Run a live prediction at one coordinate.

Example: orcacast-cli predict 48.5156 -123.0123 --env prey_density=0.8 --behavior feeding`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude: %w", err)
			}
			env, err := parseEnvironment(envFlags)
			if err != nil {
				return err
			}
			req := app.PredictRequest{Latitude: lat, Longitude: lng, Environment: env}
			if at != "" {
				if req.At, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at (use RFC3339): %w", err)
				}
			}

			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			var out interface{}
			switch {
			case explain:
				out, err = c.Predictions.Explain(cmd.Context(), req)
			case behavior != "":
				out, err = c.Predictions.PredictBehavior(cmd.Context(), behavior, req)
			default:
				out, err = c.Predictions.Query(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringToStringVar(&envFlags, "env", nil, "Covariate overrides, e.g. --env prey_density=0.8,depth=30")
	cmd.Flags().StringVar(&behavior, "behavior", "", "Only predict this behavior")
	cmd.Flags().StringVar(&at, "at", "", "Query instant (RFC3339); defaults to now")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print raw activations and the merged environment instead of sampling")

	return cmd
}

func newGridCmd(setup setupFunc) *cobra.Command {
	var latRange, lngRange string
	var resolution, hours int
	var start string
	var envFlags map[string]string
	var xlsxPath, reportPath string
	var persist bool

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Generate a forecast grid over a region",
		Long: `Generate a forecast grid and print a summary report.

Example: orcacast-cli grid --lat 48.3:48.8 --lng -123.4:-122.8 --resolution 15 --hours 24 --xlsx grid.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := forecast.GridRequest{GridResolution: resolution, TimeHours: hours}
			var err error
			if req.LatRange, err = parseRange(latRange); err != nil {
				return fmt.Errorf("--lat: %w", err)
			}
			if req.LngRange, err = parseRange(lngRange); err != nil {
				return fmt.Errorf("--lng: %w", err)
			}
			if req.BaseEnvironment, err = parseEnvironment(envFlags); err != nil {
				return err
			}
			if start != "" {
				if req.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start (use RFC3339): %w", err)
				}
			}

			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			started := time.Now()
			grid, err := c.Forecasts.GenerateGrid(cmd.Context(), req, persist)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "grid %s: %d points in %v\n", grid.ID, len(grid.Points), time.Since(started).Round(time.Millisecond))

			if xlsxPath != "" {
				if err := excel.WriteGrid(grid, xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", xlsxPath)
			}

			md, err := report.Markdown(grid, report.DefaultHotspots)
			if err != nil {
				return err
			}
			if reportPath != "" {
				return os.WriteFile(reportPath, md, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(md)
			return err
		},
	}

	cmd.Flags().StringVar(&latRange, "lat", "", "Latitude range min:max")
	cmd.Flags().StringVar(&lngRange, "lng", "", "Longitude range min:max")
	cmd.Flags().IntVar(&resolution, "resolution", 15, "Cells per axis")
	cmd.Flags().IntVar(&hours, "hours", 24, "Forecast horizon in hours")
	cmd.Flags().StringVar(&start, "start", "", "Horizon start (RFC3339); defaults to the current hour")
	cmd.Flags().StringToStringVar(&envFlags, "env", nil, "Base covariates, e.g. --env temperature=12")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the grid to this .xlsx file")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the markdown report here instead of stdout")
	cmd.Flags().BoolVar(&persist, "persist", false, "Store the grid in the database")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-equations [source]",
		Short: "Validate equations from a file and store them as the active set in postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Setenv("EQUATIONS_SOURCE", args[0])
			logger := internal.NewLogger(internal.LogLevelInfo)
			c, err := newContainer(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer c.Close()
			if c.DB == nil {
				return fmt.Errorf("import-equations requires DATABASE_URL")
			}

			// the container load already validated the whole set
			snap, err := c.Registry.Snapshot()
			if err != nil {
				return err
			}
			equations, err := c.EquationSource.FetchEquations(cmd.Context())
			if err != nil {
				return err
			}
			if err := postgres.NewEquationRepository(c.DB).ReplaceEquations(cmd.Context(), equations); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d equations (version %s)\n", snap.Len(), snap.Version().Short())
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := os.Getenv("DATABASE_URL")
			if url == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			db, err := sqlx.ConnectContext(cmd.Context(), "postgres", url)
			if err != nil {
				return err
			}
			defer db.Close()

			migrator := migration.NewRunner()
			if err := migrator.Run(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %s\n", migrator.Version())
			return nil
		},
	}
}

func parseRange(s string) (forecast.Range, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return forecast.Range{}, fmt.Errorf("range %q must be min:max", s)
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return forecast.Range{}, err
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return forecast.Range{}, err
	}
	return forecast.Range{Min: min, Max: max}, nil
}

func parseEnvironment(flags map[string]string) (environment.Context, error) {
	env := make(environment.Context, len(flags))
	for name, raw := range flags {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("covariate %s: %w", name, err)
		}
		env[name] = v
	}
	return env, env.Validate()
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
