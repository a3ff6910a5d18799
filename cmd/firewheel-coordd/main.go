// Command firewheel-coordd runs the Coordination Service (spec.md
// §4.4): the single authoritative process holding VM state and
// experiment timing for one or more experiment dbs. Grounded on
// cuemby-warren/cmd/warren/main.go's cobra root command plus
// persistent log flags.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/coordsvc"
	"github.com/sandialabs/firewheel-core/pkg/log"
	"github.com/sandialabs/firewheel-core/pkg/metrics"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "firewheel-coordd",
	Short:   "FIREWHEEL Coordination Service",
	Long:    "firewheel-coordd serves the Coordination Service gRPC surface: VM mapping state and experiment start/launch timing for one or more experiment databases.",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("firewheel-coordd version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")
	rootCmd.Flags().Int("port", 50051, "gRPC listen port")
	rootCmd.Flags().String("hostname", "0.0.0.0", "gRPC bind hostname")
	rootCmd.Flags().Int("metrics-port", 9090, "Prometheus metrics HTTP port (0 disables)")
	rootCmd.Flags().Int("start-buffer-sec", 10, "seconds added to \"now\" when a start time is first published")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

func runServe(cmd *cobra.Command, args []string) error {
	hostname, _ := cmd.Flags().GetString("hostname")
	port, _ := cmd.Flags().GetInt("port")
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")
	startBuffer, _ := cmd.Flags().GetInt("start-buffer-sec")

	logger := log.WithComponent("coordsvc")

	if metricsPort > 0 {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			addr := fmt.Sprintf(":%d", metricsPort)
			logger.Info().Str("addr", addr).Msg("metrics server listening")
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}

	store := coordsvc.NewStore(config.ExperimentTiming{StartBufferSec: startBuffer})
	srv := coordsvc.NewServer(store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", hostname, port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		srv.Stop()
		return nil
	}
}
