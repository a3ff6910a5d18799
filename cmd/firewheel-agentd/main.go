// Command firewheel-agentd runs one VM's Schedule Executor (spec.md
// §4.3): it fetches that VM's schedule from the Schedule Blob Store,
// dials the guest agent and the Coordination Service, and drives the
// schedule to completion. Grounded on cuemby-warren/cmd/warren/main.go's
// cobra root command plus persistent log flags, generalized from "one
// binary, many subcommands (cluster/manager/worker/...)" to "one binary,
// one VM" since an agent process is 1:1 with a VM by spec.md §5's
// process model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sandialabs/firewheel-core/pkg/config"
	"github.com/sandialabs/firewheel-core/pkg/coordsvc"
	"github.com/sandialabs/firewheel-core/pkg/executor"
	"github.com/sandialabs/firewheel-core/pkg/guestagent"
	"github.com/sandialabs/firewheel-core/pkg/log"
	"github.com/sandialabs/firewheel-core/pkg/objectstore"
	"github.com/sandialabs/firewheel-core/pkg/scheduledb"
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
	Use:     "firewheel-agentd",
	Short:   "FIREWHEEL per-VM schedule agent",
	Long:    "firewheel-agentd drives one VM's schedule against its guest agent, coordinating with the Coordination Service for experiment timing and the object store for schedule payloads.",
	Version: Version,
	RunE:    runAgent,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("firewheel-agentd version %s\ncommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")

	rootCmd.Flags().String("vm-name", "", "VM name (also the schedule blob store key)")
	rootCmd.Flags().String("server-uuid", "", "this VM's server_uuid in the Coordination Service (generated if omitted)")
	rootCmd.Flags().String("db", "default", "experiment db namespace")
	rootCmd.Flags().String("coord-hostname", "127.0.0.1", "Coordination Service hostname")
	rootCmd.Flags().Int("coord-port", 50051, "Coordination Service port")
	rootCmd.Flags().String("guestagent-addr", "", "guest agent RPC address (host:port)")
	rootCmd.Flags().String("objectstore-root", "", "object store root directory (defaults to FIREWHEEL_OBJECTSTORE_ROOT)")
	rootCmd.Flags().String("reboot-marker-path", "", "in-VM path whose presence signals a reboot, in addition to the reserved exit code")
	_ = rootCmd.MarkFlagRequired("vm-name")
	_ = rootCmd.MarkFlagRequired("guestagent-addr")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

func runAgent(cmd *cobra.Command, args []string) error {
	vmName, _ := cmd.Flags().GetString("vm-name")
	serverUUID, _ := cmd.Flags().GetString("server-uuid")
	if serverUUID == "" {
		serverUUID = uuid.NewString()
	}
	db, _ := cmd.Flags().GetString("db")
	coordHostname, _ := cmd.Flags().GetString("coord-hostname")
	coordPort, _ := cmd.Flags().GetInt("coord-port")
	guestAddr, _ := cmd.Flags().GetString("guestagent-addr")
	objRoot, _ := cmd.Flags().GetString("objectstore-root")
	markerPath, _ := cmd.Flags().GetString("reboot-marker-path")

	logger := log.WithVM(vmName)
	retryCfg := config.DefaultRetry()

	objStoreCfg := config.DefaultObjectStore()
	if objRoot != "" {
		objStoreCfg.RootDir = objRoot
	}
	store, err := objectstore.Open(objStoreCfg.RootDir)
	if err != nil {
		return fmt.Errorf("opening object store: %w", err)
	}
	defer store.Close()
	sched := scheduledb.New(store)

	scheduleBytes, _, err := sched.Get(vmName)
	if err != nil {
		return fmt.Errorf("fetching schedule for %s: %w", vmName, err)
	}
	parsed, err := decodeSchedule(scheduleBytes)
	if err != nil {
		return fmt.Errorf("decoding schedule for %s: %w", vmName, err)
	}

	coordConn, err := grpc.NewClient(
		coordsvc.Addr(config.Coordination{Hostname: coordHostname, Port: coordPort}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		coordsvc.DialOption(),
	)
	if err != nil {
		return fmt.Errorf("dialing coordination service: %w", err)
	}
	defer coordConn.Close()
	coord := coordsvc.NewClient(coordConn, db, serverUUID, retryCfg)

	guestConn, err := grpc.NewClient(
		guestAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		guestagent.RPCDialOption(),
	)
	if err != nil {
		return fmt.Errorf("dialing guest agent: %w", err)
	}
	defer guestConn.Close()
	driver := guestagent.NewRPCDriver(guestConn)

	exec := executor.New(executor.Config{
		VMName:           vmName,
		Driver:           driver,
		Coordinator:      coord,
		Fetcher:          objectStoreFetcher{store: store},
		Sink:             transferSink{},
		Retry:            retryCfg,
		RebootMarkerPath: markerPath,
		Log:              logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("received shutdown signal, draining")
		cancel()
	}()

	if err := exec.Run(ctx, parsed); err != nil {
		return fmt.Errorf("executor run: %w", err)
	}
	logger.Info().Msg("schedule complete")
	return nil
}
