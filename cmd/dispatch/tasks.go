package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dispatchd/dispatch/task"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	titler = cases.Title(language.English)
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks known to the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := newClient().listTasks()
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println(headerStyle.Render("No tasks"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d task(s)", len(tasks))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Steps")+"\t"+titleStyle.Render("Message")+"\t")
		for i := range tasks {
			t := &tasks[i]
			msg := t.UserMessage
			if len(msg) > 50 {
				msg = msg[:47] + "..."
			}
			fmt.Fprintln(w,
				idStyle.Render(t.ID)+"\t"+
					titler.String(string(t.Type))+"\t"+
					statusLabel(t.Status)+"\t"+
					strconv.Itoa(len(t.Steps))+"\t"+
					msg+"\t")
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newClient().getTask(args[0])
		if err != nil {
			return err
		}

		fmt.Println(headerStyle.Render(titler.String(string(t.Type)) + " task " + t.ID))
		fmt.Println(dimStyle.Render("created " + t.CreatedAt.Local().Format(time.RFC1123)))
		fmt.Println("status: " + statusLabel(t.Status))
		if t.UserMessage != "" {
			fmt.Println("message: " + t.UserMessage)
		}
		if t.Error != "" {
			fmt.Println("error: " + failStyle.Render(t.Error))
		}

		if len(t.Steps) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, titleStyle.Render("Step")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Duration")+"\t"+titleStyle.Render("Output")+"\t")
			for _, s := range t.Steps {
				dur := "-"
				if s.CompletedAt != nil {
					dur = s.CompletedAt.Sub(s.StartedAt).Round(time.Millisecond).String()
				}
				out := s.Output
				if s.Error != "" {
					out = failStyle.Render(s.Error)
				}
				if len(out) > 60 {
					out = out[:57] + "..."
				}
				fmt.Fprintln(w, s.Name+"\t"+string(s.Status)+"\t"+dur+"\t"+out+"\t")
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		if t.Result != "" {
			fmt.Println()
			fmt.Println(t.Result)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(showCmd)
}

func statusLabel(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return okStyle.Render(string(s))
	case task.StatusFailed:
		return failStyle.Render(string(s))
	default:
		return dimStyle.Render(string(s))
	}
}
