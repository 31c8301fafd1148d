package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kbukum/kalikit/tools"
)

func newActionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "actions [name]",
		Short: "List the available actions, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := a.executor()
			if err != nil {
				return err
			}
			catalog, err := a.catalog(exec)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				action, ok := catalog.Get(args[0])
				if !ok {
					return fmt.Errorf("unknown action %q", args[0])
				}
				return a.describeAction(catalog, action)
			}
			return a.listActions(catalog.List())
		},
	}
}

func (a *app) listActions(actions []tools.Action) error {
	if ok, err := encode(a.stdout, a.output, actions); ok {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTOOL\tPARAMS\tDESCRIPTION")
	for _, action := range actions {
		names := make([]string, 0, len(action.Params))
		for _, p := range action.Params {
			name := p.Name
			if !p.Required {
				name += "?"
			}
			names = append(names, name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", action.Name, action.Tool, strings.Join(names, ","), action.Description)
	}
	return w.Flush()
}

func (a *app) describeAction(catalog *tools.Catalog, action tools.Action) error {
	if ok, err := encode(a.stdout, a.output, action); ok {
		return err
	}
	spec, _ := catalog.Spec(action.Tool)
	fmt.Fprintf(a.stdout, "Name:        %s\n", action.Name)
	fmt.Fprintf(a.stdout, "Description: %s\n", action.Description)
	fmt.Fprintf(a.stdout, "Policy:      %s\n", spec)
	if action.Async {
		fmt.Fprintln(a.stdout, "Async:       yes")
	}
	fmt.Fprintln(a.stdout, "Params:")
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	for _, p := range action.Params {
		req := "optional"
		if p.Required {
			req = "required"
		}
		line := fmt.Sprintf("  %s\t%s\t%s", p.Name, req, p.Description)
		if p.Default != "" {
			line += fmt.Sprintf(" (default %s)", p.Default)
		}
		fmt.Fprintln(w, line)
	}
	return w.Flush()
}
