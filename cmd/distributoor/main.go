package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/distributoor/internal/distribution"
	"github.com/ethpandaops/distributoor/internal/export"
	"github.com/ethpandaops/distributoor/internal/migrate"
	"github.com/ethpandaops/distributoor/internal/service"
	"github.com/ethpandaops/distributoor/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distributoor",
		Short: "Telemetry distribution accumulator",
		Long: `distributoor accumulates raw telemetry samples into sparse
histograms: linear and exponential custom distributions plus functional
timing and memory distributions, served over an HTTP ingest API or run
as one-shot commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"path to config file",
	)
	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(customCmd())
	cmd.AddCommand(timingCmd())
	cmd.AddCommand(memoryCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.FullWithPlatform())
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the distribution ingest API",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := service.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// CLI flag overrides config file.
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			level, err := logrus.ParseLevel(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
			}

			log.SetLevel(level)

			ctx, cancel := signal.NotifyContext(
				context.Background(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer cancel()

			svc, err := service.New(log, cfg)
			if err != nil {
				return fmt.Errorf("creating service: %w", err)
			}

			log.Info("Starting distributoor")

			if err := svc.Start(ctx); err != nil {
				return fmt.Errorf("starting service: %w", err)
			}

			<-ctx.Done()

			log.Info("Shutting down distributoor")

			if err := svc.Stop(); err != nil {
				log.WithError(err).Error("Error during shutdown")

				return fmt.Errorf("stopping service: %w", err)
			}

			log.Info("Shutdown complete")

			return nil
		},
	}
}

func customCmd() *cobra.Command {
	var (
		rangeMin      uint32
		rangeMax      uint32
		bucketCount   int
		histogramType string
	)

	cmd := &cobra.Command{
		Use:   "custom [samples...]",
		Short: "Accumulate samples into a custom distribution",
		Long: `Accumulates the given samples into a linear or exponential
histogram and prints the bucket counts as JSON. Samples are positional
arguments, or read whitespace-separated from stdin when absent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(args)
			if err != nil {
				return err
			}

			var typeCode int32

			switch histogramType {
			case "linear":
				typeCode = 0
			case "exponential":
				typeCode = 1
			default:
				return fmt.Errorf("unknown histogram type %q (want linear or exponential)", histogramType)
			}

			out, err := distribution.Custom(rangeMin, rangeMax, bucketCount, typeCode, samples)
			if err != nil {
				return err
			}

			fmt.Println(out)

			return nil
		},
	}

	cmd.Flags().Uint32Var(&rangeMin, "min", 1, "minimum of the histogram range")
	cmd.Flags().Uint32Var(&rangeMax, "max", 100, "maximum of the histogram range")
	cmd.Flags().IntVar(&bucketCount, "buckets", 10, "number of buckets")
	cmd.Flags().StringVar(&histogramType, "type", "exponential", "bucketing strategy (linear, exponential)")

	return cmd
}

func timingCmd() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:   "timing [samples...]",
		Short: "Accumulate duration samples into a timing distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(args)
			if err != nil {
				return err
			}

			code, ok := timeUnitCodes[unit]
			if !ok {
				return fmt.Errorf("unknown time unit %q", unit)
			}

			out, err := distribution.Timing(code, samples)
			if err != nil {
				return err
			}

			fmt.Println(out)

			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "nanosecond", "unit of the input samples")

	return cmd
}

func memoryCmd() *cobra.Command {
	var unit string

	cmd := &cobra.Command{
		Use:   "memory [samples...]",
		Short: "Accumulate size samples into a memory distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := readSamples(args)
			if err != nil {
				return err
			}

			code, ok := memoryUnitCodes[unit]
			if !ok {
				return fmt.Errorf("unknown memory unit %q", unit)
			}

			out, err := distribution.Memory(code, samples)
			if err != nil {
				return err
			}

			fmt.Println(out)

			return nil
		},
	}

	cmd.Flags().StringVar(&unit, "unit", "byte", "unit of the input samples")

	return cmd
}

var timeUnitCodes = map[string]int32{
	"nanosecond":  0,
	"microsecond": 1,
	"millisecond": 2,
	"second":      3,
	"minute":      4,
	"hour":        5,
	"day":         6,
}

var memoryUnitCodes = map[string]int32{
	"byte":     0,
	"kilobyte": 1,
	"megabyte": 2,
	"gigabyte": 3,
}

func migrateCmd() *cobra.Command {
	var chCfg export.ClickHouseConfig

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ClickHouse snapshot schema",
	}

	cmd.PersistentFlags().StringVar(
		&chCfg.Endpoint, "endpoint", "",
		"ClickHouse native protocol address (host:port)",
	)
	cmd.PersistentFlags().StringVar(
		&chCfg.Database, "database", "default",
		"target database",
	)
	cmd.PersistentFlags().StringVar(
		&chCfg.Username, "username", "",
		"ClickHouse username",
	)
	cmd.PersistentFlags().StringVar(
		&chCfg.Password, "password", "",
		"ClickHouse password",
	)

	if err := cmd.MarkPersistentFlagRequired("endpoint"); err != nil {
		fmt.Fprintf(os.Stderr, "error marking flag required: %v\n", err)
		os.Exit(1)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate.New(newLogger(), chCfg).Up(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate.New(newLogger(), chCfg).Down(cmd.Context())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, dirty, err := migrate.New(newLogger(), chCfg).Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("version: %d dirty: %v\n", version, dirty)

			return nil
		},
	})

	return cmd
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if logLevel != "" {
		if level, err := logrus.ParseLevel(logLevel); err == nil {
			log.SetLevel(level)
		}
	}

	return log
}

// readSamples parses samples from args, falling back to stdin.
func readSamples(args []string) ([]uint64, error) {
	if len(args) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Split(bufio.ScanWords)

		for scanner.Scan() {
			args = append(args, scanner.Text())
		}

		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading samples from stdin: %w", err)
		}
	}

	samples := make([]uint64, 0, len(args))

	for _, arg := range args {
		sample, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing sample %q: %w", arg, err)
		}

		samples = append(samples, sample)
	}

	return samples, nil
}
