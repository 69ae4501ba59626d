package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcphub/mcphub/internal/clientconfig"
	"github.com/mcphub/mcphub/internal/service"
)

func newInstallCommand(v *viper.Viper) *cobra.Command {
	var settingsPath, url, name string

	cmd := &cobra.Command{
		Use:       "install <" + strings.Join(service.Names(), "|") + ">",
		Short:     "Register a server in an MCP client settings file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: service.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := service.Lookup(args[0])
			if err != nil {
				return err
			}

			if settingsPath == "" {
				if settingsPath, err = clientconfig.DefaultSettingsPath(); err != nil {
					return err
				}
			}
			if name == "" {
				name = svc.Name
			}
			if url == "" {
				v.SetDefault("server.port", svc.DefaultPort)
				url = fmt.Sprintf("http://localhost:%d/", v.GetInt("server.port"))
			}

			changed, err := clientconfig.Install(settingsPath, name, url)
			if err != nil {
				return fmt.Errorf("failed to update %s: %w", settingsPath, err)
			}

			out := cmd.OutOrStdout()
			if !changed {
				fmt.Fprintf(out, "%s already points at %s in %s\n", name, url, settingsPath)
				return nil
			}
			color.New(color.FgGreen).Fprintf(out, "registered %s -> %s in %s\n", name, url, settingsPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "", "client settings file (default ~/.gemini/settings.json)")
	cmd.Flags().StringVar(&url, "url", "", "server URL (default http://localhost:<port>/)")
	cmd.Flags().StringVar(&name, "name", "", "entry name under mcpServers (default: the service name)")
	return cmd
}
