package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mcphub/mcphub/internal/mcp"
	"github.com/mcphub/mcphub/internal/service"
)

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "tools <" + strings.Join(service.Names(), "|") + ">",
		Short:     "List the tools a server exposes",
		Args:      cobra.ExactArgs(1),
		ValidArgs: service.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.Lookup(args[0])
			if err != nil {
				return err
			}
			printTools(cmd.OutOrStdout(), svc.Info, svc.Tools())
			return nil
		},
	}
}

func printTools(w io.Writer, info mcp.Implementation, tools []mcp.ToolDescriptor) {
	title := color.New(color.Bold)
	name := color.New(color.FgCyan, color.Bold)
	required := color.New(color.FgYellow)

	title.Fprintf(w, "%s %s\n", info.Name, info.Version)
	for _, tool := range tools {
		fmt.Fprintf(w, "\n  %s  %s\n", name.Sprint(tool.Name), tool.Description)

		isRequired := map[string]bool{}
		for _, r := range tool.InputSchema.Required {
			isRequired[r] = true
		}

		props := make([]string, 0, len(tool.InputSchema.Properties))
		for prop := range tool.InputSchema.Properties {
			props = append(props, prop)
		}
		sort.Strings(props)

		for _, prop := range props {
			var typ, desc string
			if schema, ok := tool.InputSchema.Properties[prop].(map[string]interface{}); ok {
				typ, _ = schema["type"].(string)
				desc, _ = schema["description"].(string)
			}
			line := fmt.Sprintf("    %s (%s)", prop, typ)
			if isRequired[prop] {
				line += " " + required.Sprint("required")
			}
			if desc != "" {
				line += "  " + desc
			}
			fmt.Fprintln(w, line)
		}
	}
}
