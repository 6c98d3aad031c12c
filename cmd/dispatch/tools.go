package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the server's tool catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := newClient().listTools()
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			fmt.Println(headerStyle.Render("No tools registered"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("%d tool(s)", len(defs))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("Name")+"\t"+titleStyle.Render("Parameters")+"\t"+titleStyle.Render("Description")+"\t")
		for _, d := range defs {
			var params []string
			for _, p := range d.Params {
				name := p.Name
				if p.Required {
					name += "*"
				}
				params = append(params, name)
			}
			sort.Strings(params)
			fmt.Fprintln(w, okStyle.Render(d.Name)+"\t"+strings.Join(params, ", ")+"\t"+d.Description+"\t")
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().status()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(st))
		for k := range st {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s: %v\n", titler.String(k), st[k])
		}
		return nil
	},
}
