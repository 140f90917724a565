// Command qexec runs the executor simulator (pkg/execsim) against a
// running scheduler, standing in for a real executor process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/qscheduler/pkg/client"
	"github.com/cuemby/qscheduler/pkg/execsim"
	"github.com/cuemby/qscheduler/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qexec",
	Short: "Executor simulator: polls a scheduler and reports tasks completed",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("id", "", "Executor id (required)")
	rootCmd.Flags().String("addr", "127.0.0.1:7070", "Scheduler service address")
	rootCmd.Flags().String("host", "", "Host to advertise; empty lets the scheduler infer it from the connection")
	rootCmd.Flags().Int("port", 0, "Port to advertise")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

func run(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	addr, _ := cmd.Flags().GetString("addr")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	logLevel, _ := cmd.Flags().GetString("log-level")

	if id == "" {
		return fmt.Errorf("qexec: --id is required")
	}

	log.Init(log.Config{Level: log.Level(logLevel)})

	c, err := client.NewClient(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	executor := execsim.New(id, host, port, c)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	executor.Run(ctx)
	return nil
}
