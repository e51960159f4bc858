package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

var rootCmd = &cobra.Command{
	Use:   "pulsar",
	Short: "Rust toolchain and feature test-matrix runner",
	Long: "Pulsar runs a crate's test suite once per (toolchain, feature-subset) combination,\n" +
		"in isolated working copies with bounded parallelism, and can follow up with a\n" +
		"honggfuzz campaign.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initSettings)

	rootCmd.PersistentFlags().String("config", config.DefaultPath, "matrix config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initSettings() {
	viper.SetEnvPrefix("PULSAR")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	log.SetReportTimestamp(true)
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
}

// loadConfig reads and validates the matrix config named by --config /
// PULSAR_CONFIG. Any failure here is a fatal setup error.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// shutdownContext returns a context canceled on SIGINT or SIGTERM. After
// canceling, the handler waits the grace period, has the reaper delete
// every registered workspace, and exits 0: an interrupt is an orderly stop,
// not a failure. In-flight cargo processes are killed via the context; any
// straggler loses its workspace regardless.
func shutdownContext(reaper *workspace.Reaper, em *telemetry.Emitter) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("interrupt received, shutting down")
		cancel()
		time.Sleep(workspace.GracePeriod)
		n := reaper.Sweep()
		log.Info("shutdown complete", "workspaces_deleted", n)
		_ = em.Emit(telemetry.Event{Kind: telemetry.KindShutdown, Data: map[string]int{"workspaces_deleted": n}})
		_ = em.Close()
		os.Exit(0)
	}()
	return ctx, cancel
}
