// Command qscheduler is the scheduler service binary: it serves the
// SchedulerService/ExternalScaler gRPC API, and bundles the thin client
// subcommands (submit/status/file-metadata) alongside the serve command
// so one binary covers both operating and poking at a scheduler.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cuemby/qscheduler/pkg/api"
	"github.com/cuemby/qscheduler/pkg/client"
	"github.com/cuemby/qscheduler/pkg/config"
	"github.com/cuemby/qscheduler/pkg/kv/embedded"
	"github.com/cuemby/qscheduler/pkg/kv/raftkv"
	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/cuemby/qscheduler/pkg/metrics"
	"github.com/cuemby/qscheduler/pkg/reconciler"
	"github.com/cuemby/qscheduler/pkg/store"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "qscheduler",
	Short:   "Distributed SQL query scheduler",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"qscheduler version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fileMetadataCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("namespace", "default", "State store key namespace")
	serveCmd.Flags().String("backend", "embedded", "State store backend: embedded or raft")
	serveCmd.Flags().String("bind-addr", "0.0.0.0:7070", "gRPC listen address")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health HTTP listen address")
	serveCmd.Flags().String("data-dir", "./data", "Data directory for the state store backend")
	serveCmd.Flags().String("node-id", "node-1", "Raft node id (raft backend only)")
	serveCmd.Flags().String("raft-bind-addr", "127.0.0.1:7071", "Raft transport bind address (raft backend only)")
	serveCmd.Flags().Duration("reconcile-interval", reconciler.DefaultInterval, "Reconciliation loop interval")
}

func runServe(cmd *cobra.Command, args []string) error {
	namespace, _ := cmd.Flags().GetString("namespace")
	backendKind, _ := cmd.Flags().GetString("backend")
	bindAddr, _ := cmd.Flags().GetString("bind-addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	nodeID, _ := cmd.Flags().GetString("node-id")
	raftBindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	reconcileInterval, _ := cmd.Flags().GetDuration("reconcile-interval")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("qscheduler: failed to create data directory: %w", err)
	}

	s, kvBackend, err := newStore(backendKind, namespace, dataDir, nodeID, raftBindAddr)
	if err != nil {
		return err
	}
	defer kvBackend.Close()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("store", true, "ready")

	collector := metrics.NewCollector(s, kvBackend)
	collector.Start()
	defer collector.Stop()

	srv := api.NewServer(s, api.NewDefaultLogicalPlanner(0, 0))

	recon := reconciler.New(s, reconcileInterval)
	recon.Start()
	defer recon.Stop()
	metrics.RegisterComponent("reconciler", true, "running")

	go func() {
		http.Handle("/metrics", metrics.Handler())
		http.Handle("/health", metrics.HealthHandler())
		http.Handle("/ready", metrics.ReadyHandler())
		http.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	fmt.Printf("Metrics endpoint: http://%s/metrics\n", metricsAddr)

	errCh := make(chan error, 1)
	go func() {
		metrics.RegisterComponent("api", true, "serving")
		errCh <- srv.Start(bindAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		fmt.Println("shutting down...")
		srv.Stop()
		return nil
	}
}

// stateStoreCloser adapts the two concrete kv backends' Close methods
// behind one interface serve can defer without a type switch at the call
// site.
type stateStoreCloser interface {
	Close() error
}

func newStore(kind, namespace, dataDir, nodeID, raftBindAddr string) (*store.Store, stateStoreCloser, error) {
	switch kind {
	case "embedded":
		b, err := embedded.New(dataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("qscheduler: failed to open embedded backend: %w", err)
		}
		return store.New(b, namespace), b, nil

	case "raft":
		b, err := raftkv.New(raftkv.Config{NodeID: nodeID, BindAddr: raftBindAddr, DataDir: dataDir})
		if err != nil {
			return nil, nil, fmt.Errorf("qscheduler: failed to open raft backend: %w", err)
		}
		return store.New(b, namespace), b, nil

	default:
		return nil, nil, fmt.Errorf("qscheduler: unknown backend %q (want embedded or raft)", kind)
	}
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a query and print its job id",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().String("addr", "127.0.0.1:7070", "Scheduler service address")
	submitCmd.Flags().String("sql", "", "SQL text to execute")
	submitCmd.Flags().String("plan-file", "", "Path to a serialized plan file (alternative to --sql)")
	submitCmd.Flags().StringSlice("set", nil, "Per-query config override, key=value (repeatable)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	sql, _ := cmd.Flags().GetString("sql")
	planFile, _ := cmd.Flags().GetString("plan-file")
	sets, _ := cmd.Flags().GetStringSlice("set")
	if sql == "" && planFile == "" {
		return fmt.Errorf("qscheduler submit: one of --sql or --plan-file is required")
	}

	var planJSON []byte
	if planFile != "" {
		var err error
		planJSON, err = os.ReadFile(planFile)
		if err != nil {
			return fmt.Errorf("qscheduler submit: failed to read plan file: %w", err)
		}
	}

	settings, err := parseSettings(sets)
	if err != nil {
		return err
	}

	c, err := client.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	jobID, err := c.ExecuteQuery(sql, planJSON, settings)
	if err != nil {
		return err
	}
	fmt.Println(jobID)
	return nil
}

func parseSettings(raw []string) ([]config.KeyValue, error) {
	settings := make([]config.KeyValue, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("qscheduler: malformed --set %q, want key=value", kv)
		}
		settings = append(settings, config.KeyValue{Key: key, Value: value})
	}
	return settings, nil
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Print a job's current status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("addr", "127.0.0.1:7070", "Scheduler service address")
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	c, err := client.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := c.GetJobStatus(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("job_id:     %s\n", status.JobID)
	fmt.Printf("phase:      %s\n", status.Phase)
	if status.Error != "" {
		fmt.Printf("error:      %s\n", status.Error)
	}
	fmt.Printf("updated_at: %s\n", status.UpdatedAt.Format(time.RFC3339))
	return nil
}

var fileMetadataCmd = &cobra.Command{
	Use:   "file-metadata",
	Short: "Probe a path for partition metadata",
	RunE:  runFileMetadata,
}

func init() {
	fileMetadataCmd.Flags().String("addr", "127.0.0.1:7070", "Scheduler service address")
	fileMetadataCmd.Flags().String("path", "", "Path to a file or directory")
	fileMetadataCmd.Flags().String("type", "parquet", "File type: parquet or csv")
}

func runFileMetadata(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	path, _ := cmd.Flags().GetString("path")
	fileType, _ := cmd.Flags().GetString("type")
	if path == "" {
		return fmt.Errorf("qscheduler file-metadata: --path is required")
	}

	c, err := client.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.GetFileMetadata(path, fileType)
	if err != nil {
		return err
	}

	for _, p := range resp.Partitions {
		fmt.Println(p.Filenames)
	}
	return nil
}
