// Package main provides the agentflow binary entry point.
// Agentflow is a multi-agent task orchestration service: it plans a
// user request into a typed task DAG with an LLM, holds the plan at a
// human approval gate, executes approved tasks in dependency order,
// and compiles the results into a final report.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/c360studio/agentflow/config"

	// Register LLM providers via init()
	_ "github.com/c360studio/agentflow/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "agentflow"
)

func main() {
	// A panic anywhere in the service should leave a stack trace, not
	// just vanish with the process.
	defer func() {
		if r := recover(); r != nil {
			trace := make([]byte, 8192)
			trace = trace[:runtime.Stack(trace, false)]
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\n%s\n", r, trace)
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		natsURL    string
		httpAddr   string
	)

	cmd := &cobra.Command{
		Use:   "agentflow",
		Short: "Multi-agent task orchestration service",
		Long: `Agentflow orchestrates LLM-driven workflows with a human in the loop.

A request is planned into a task DAG, the plan waits at an approval
gate, and approved tasks run serially in dependency order across
research and code workers. Every transition is checkpointed to NATS
JetStream, so workflows survive restarts and resume where they left
off.

The HTTP API exposes intake (POST /run), observation
(GET /status/{thread_id}), and the approval gate
(POST /approve/{thread_id}).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel, natsURL, httpAddr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	// Init command: write a starter user config for editing
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default user config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.NewLoader(slog.Default()).EnsureUserConfig()
		},
	})

	return cmd
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║            Agentflow v" + Version + "                   ║")
	fmt.Println("║      Multi-Agent Task Orchestration           ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}
