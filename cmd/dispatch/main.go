// Command dispatch is the CLI client for a running dispatchd server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/internal/version"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Talk to a dispatchd task server",
	Long: `dispatch is the command-line client for dispatchd.

It creates tasks, streams their execution events, and inspects the
server's task registry and tool catalog.

Quick start:
  dispatch send "what is 2+2?" --tools   # run a task and stream the reply
  dispatch tasks                         # list known tasks
  dispatch show <task-id>                # inspect one task
  dispatch history                       # list finished tasks
  dispatch tools                         # list available tools`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8787", "dispatchd base URL")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
