package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentbench/agenteval/internal/adapters"
	"github.com/agentbench/agenteval/internal/criteria"
	"github.com/agentbench/agenteval/internal/metrics"
)

var listTags []string

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available adapters and metrics",
		RunE:  listCommandE,
	}

	cmd.Flags().StringArrayVar(&listTags, "tag", nil, "Only show entries carrying every given tag")

	return cmd
}

func listCommandE(cmd *cobra.Command, args []string) error {
	adapterReg := adapters.NewRegistry()
	if err := adapters.RegisterBuiltins(adapterReg); err != nil {
		return err
	}
	metricReg := metrics.NewRegistry()
	if err := metrics.RegisterBuiltins(metricReg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Adapters:")
	for name := range adapterReg.List(listTags...) {
		fmt.Fprintf(out, "  %-24s %s\n", name, strings.Join(adapterReg.Tags(name), ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Metrics:")
	for name := range metricReg.List(listTags...) {
		fmt.Fprintf(out, "  %-24s %s\n", name, strings.Join(metricReg.Tags(name), ", "))
	}

	if names := criteria.Validators.Names(); len(names) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Validators:")
		for name := range criteria.Validators.List(listTags...) {
			fmt.Fprintf(out, "  %s\n", name)
		}
	}

	return nil
}
