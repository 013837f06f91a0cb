// marketdash-mock serves deterministic fixture data over the same REST API
// the dashboard consumes, plus a gRPC health endpoint.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketdash/internal/config"
	"marketdash/internal/mockapi"
	"marketdash/internal/util"
)

var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "marketdash-mock",
	Short:         "Fixture backend for the marketdash dashboard",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = os.Getenv(config.EnvConfigPath)
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $"+config.EnvConfigPath+")")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
}

func newLogger() (*slog.Logger, func()) {
	var w io.Writer = os.Stdout
	closer := func() {}
	if cfg.Logging.File != "" {
		f, err := util.OpenLogFile(cfg.Logging.File, "marketdash-mock")
		if err == nil {
			w = io.MultiWriter(os.Stdout, f)
			closer = func() { f.Close() }
		}
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w)
	util.SetDefault(logger)
	return logger, closer
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve fixtures over HTTP and gRPC health",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog := newLogger()
		defer closeLog()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Mock.Addr = addr
		}
		b, err := mockapi.Open(cfg.Mock, cfg.Dashboard.Symbols, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		return b.Serve(ctx, cfg.Mock.Addr, cfg.Mock.GRPCAddr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address override")
}

// --- Seed Command ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate fixture series, reports and sentiment samples",
	Long: `Generate deterministic fixtures into the configured data directory and
SQLite database. Running seed twice with the same flags produces the same
data; existing reports for the same dates are replaced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog := newLogger()
		defer closeLog()

		days, _ := cmd.Flags().GetInt("days")
		reports, _ := cmd.Flags().GetInt("reports")
		symbolsFlag, _ := cmd.Flags().GetString("symbols")
		endFlag, _ := cmd.Flags().GetString("end")

		symbols := cfg.Dashboard.Symbols
		if symbolsFlag != "" {
			symbols = nil
			for _, s := range strings.Split(symbolsFlag, ",") {
				if s = strings.TrimSpace(s); s != "" {
					symbols = append(symbols, strings.ToUpper(s))
				}
			}
		}
		end := time.Now().UTC()
		if endFlag != "" {
			var err error
			end, err = time.Parse("2006-01-02", endFlag)
			if err != nil {
				return fmt.Errorf("parsing --end: %w", err)
			}
		}

		b, err := mockapi.Open(cfg.Mock, symbols, logger)
		if err != nil {
			return err
		}
		defer b.Close()

		opts := mockapi.SeedOptions{Symbols: symbols, Days: days, Reports: reports, End: end}
		if err := mockapi.Seed(cmd.Context(), b.Series, b.DB, b.DB, opts); err != nil {
			return err
		}
		logger.Info("seeded fixtures",
			"symbols", len(symbols),
			"days", days,
			"reports", reports,
			"end", end.Format("2006-01-02"),
			"data_dir", cfg.Mock.DataDir,
			"sqlite", cfg.Mock.SQLitePath,
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("days", 300, "daily rows per symbol")
	seedCmd.Flags().Int("reports", 10, "daily reports to generate")
	seedCmd.Flags().String("symbols", "", "comma-separated symbols (default: dashboard symbols)")
	seedCmd.Flags().String("end", "", "last fixture date, YYYY-MM-DD (default: today)")
}
