package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/provider"
	"github.com/dispatchd/dispatch/task"
)

var (
	sendTools  bool
	sendImages []string
	sendFiles  []string
	sendQuiet  bool

	stepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Create a task and stream its execution",
	Long: `Create a task from a message and stream the server's events.

Step transitions print dimmed to stderr; generated content streams to
stdout as it arrives.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := task.Request{
			Messages:    []provider.Message{{Role: provider.RoleUser, Content: args[0]}},
			Images:      sendImages,
			Files:       sendFiles,
			EnableTools: sendTools,
		}

		c := newClient()
		created, err := c.createTask(req)
		if err != nil {
			return err
		}
		if !sendQuiet {
			fmt.Fprintln(os.Stderr, stepStyle.Render(fmt.Sprintf("task %s (%s)", created.ID, created.Type)))
		}

		var failed error
		err = c.streamTask(created.ID, req, func(e task.Event) error {
			switch e.Type {
			case task.EventStep:
				if sendQuiet {
					return nil
				}
				m, ok := e.Data.(map[string]any)
				if !ok {
					return nil
				}
				name, _ := m["name"].(string)
				status, _ := m["status"].(string)
				fmt.Fprintln(os.Stderr, stepStyle.Render(fmt.Sprintf("  %s: %s", name, status)))
			case task.EventContent:
				m, ok := e.Data.(map[string]any)
				if !ok {
					return nil
				}
				text, _ := m["content"].(string)
				fmt.Print(text)
			case task.EventError:
				m, _ := e.Data.(map[string]any)
				msg, _ := m["error"].(string)
				if msg == "" {
					msg = "task failed"
				}
				failed = errors.New(msg)
			case task.EventComplete:
				fmt.Println()
			}
			return nil
		})
		if err != nil {
			return err
		}
		if failed != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+failed.Error()))
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().BoolVar(&sendTools, "tools", false, "Allow the task to run tools")
	sendCmd.Flags().StringSliceVar(&sendImages, "image", nil, "Attach an image reference (repeatable)")
	sendCmd.Flags().StringSliceVar(&sendFiles, "file", nil, "Attach a file reference (repeatable)")
	sendCmd.Flags().BoolVarP(&sendQuiet, "quiet", "q", false, "Suppress step progress output")
	rootCmd.AddCommand(sendCmd)
}
