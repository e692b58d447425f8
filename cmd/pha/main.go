// pha runs a pulse-height acquisition from a YAML configuration.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"pha"
	"pha/config"
	"pha/log"
)

var errNoRegistry = errors.New("no registry configured")

var (
	configPath string
	pprofAddr  string
	target     int
	count      uint64
)

var rootCmd = &cobra.Command{
	Use:           "pha",
	Short:         "Streaming pulse-height analyzer",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire until the target pulse count is exceeded or interrupted",
	Long: `Run reads buffers from the configured source, detects pulses, and
accumulates their amplitudes until more than target_count pulses were accepted.
Snapshots go to the log and, when configured, to the metrics endpoint, the
websocket live feed and the publish broker. SIGINT or SIGTERM ends the run
early and still publishes the final snapshot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := load()
		if err != nil {
			return err
		}

		if pprofAddr != "" {
			c.Pprof = pprofAddr
		}

		if cmd.Flags().Changed("target") {
			c.Acquisition.TargetCount = target
		}

		app, err := pha.NewApp(c)
		if err != nil {
			return err
		}

		res, err := app.Run(context.Background())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pulses in %d iterations, %d binned, %d transient errors\n",
			res.State.Phase, res.State.LegitCount, res.State.Iterations, res.Histogram.Total(), res.State.TransientErrors)

		return nil
	},
}

var digitizeCmd = &cobra.Command{
	Use:   "digitize",
	Short: "Publish simulated buffers on the stream topic",
	Long: `Digitize plays a remote digitizer for a pha whose source kind is stream. It
publishes buffers from the sim settings to source.stream.topic on
source.stream.broker.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := load()
		if err != nil {
			return err
		}

		app, err := pha.NewApp(c)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := app.Digitize(ctx, count)
		fmt.Fprintf(cmd.OutOrStdout(), "published %d buffers\n", n)

		return err
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := config.Default()

		if configPath != "" {
			var err error
			if c, err = config.Load(configPath); err != nil {
				return err
			}
		}

		hash, err := config.Fingerprint(c.Acquisition)
		if err != nil {
			return err
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)

		fmt.Fprintf(cmd.OutOrStdout(), "# fingerprint %s\n", hash)

		if err := enc.Encode(c); err != nil {
			return err
		}

		return enc.Close()
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List runs announced in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := load()
		if err != nil {
			return err
		}

		if c.Registry.Kind == "" {
			return errNoRegistry
		}

		app, err := pha.NewApp(c)
		if err != nil {
			return err
		}

		runs, err := app.Runs()
		if err != nil {
			return err
		}

		for _, r := range runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Metadata["config"], r.Metrics, r.Live)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file, defaults when empty")

	runCmd.Flags().StringVar(&pprofAddr, "pprof", "", "serve /debug/pprof on this address")
	runCmd.Flags().IntVarP(&target, "target", "n", 0, "override acquisition.target_count")

	digitizeCmd.Flags().Uint64Var(&count, "count", 0, "buffers to publish, 0 until interrupted")

	rootCmd.AddCommand(runCmd, digitizeCmd, configCmd, runsCmd)
}

func load() (config.Config, error) {
	c := config.Default()

	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return c, err
		}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return c, fmt.Errorf("failed to parse log level %w", err)
	}

	if err := log.Init(c.Name, log.OptionWithLevel(level), log.OptionWithEncoding(c.Log.Encoding)); err != nil {
		return c, err
	}

	return c, nil
}

func main() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		log.Error("Exit", zap.String("err", err.Error()))
		fmt.Fprintln(os.Stderr, "pha:", err)
		log.Sync()
		os.Exit(1)
	}
}
