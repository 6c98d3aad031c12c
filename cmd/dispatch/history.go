package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dispatchd/dispatch/task"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished tasks from the server's journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []task.Entry
		path := fmt.Sprintf("/api/history?limit=%d", historyLimit)
		if err := newClient().getJSON(path, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(headerStyle.Render("No finished tasks"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d finished task(s)", len(entries))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Type")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Steps")+"\t"+titleStyle.Render("Finished")+"\t")
		for _, e := range entries {
			fmt.Fprintln(w,
				idStyle.Render(e.Task.ID)+"\t"+
					titler.String(string(e.Task.Type))+"\t"+
					statusLabel(e.Task.Status)+"\t"+
					strconv.Itoa(len(e.Steps))+"\t"+
					dimStyle.Render(e.Task.UpdatedAt.Local().Format("2006-01-02 15:04:05"))+"\t")
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show")
	rootCmd.AddCommand(historyCmd)
}
