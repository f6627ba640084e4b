// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provar-ci/provar-ci/internal/agent"
	"github.com/provar-ci/provar-ci/internal/agentserver"
	"github.com/provar-ci/provar-ci/internal/config"
	"github.com/provar-ci/provar-ci/internal/envvars"
	"github.com/provar-ci/provar-ci/internal/issue"
	"github.com/provar-ci/provar-ci/internal/secret"
)

const defaultListenAddress = "127.0.0.1:2222"

func newAgentCommand(app *App, root *rootFlags) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the remote execution agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var listen, node, hostKey string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve build requests over SSH on this node",
		Long: `Serve build requests over SSH on this node.

Clients authenticate with the token held in the variable named by
agent.token_env (default ` + config.DefaultTokenEnv + `). The server stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, _, err := app.loadConfig(ctx, root.configPath)
			if err != nil {
				return err
			}
			tokenEnv := cfg.Agent.TokenEnv
			if tokenEnv == "" {
				tokenEnv = config.DefaultTokenEnv
			}
			if listen == "" {
				listen = defaultListenAddress
			}

			local := &agent.Local{Name: node, Environ: app.Environ}
			if n, ok := cfg.Node(node); ok {
				local.ToolLocations = n.ToolLocations
			}
			srv := agentserver.New(agentserver.Config{
				Address:     listen,
				Token:       secret.New(envvars.FromEnviron(app.Environ()).Value(tokenEnv)),
				HostKeyPath: hostKey,
				Node:        local,
				Logger:      app.logger("agent-server", root.verbose || cfg.UI.Verbose),
			})
			if err := srv.Start(ctx); err != nil {
				return issue.NewErrorContext().
					WithOperation("start agent server").
					WithResource(listen).
					WithIssue(issue.AgentServerFailedId).
					WithSuggestion(fmt.Sprintf("Export %s with the shared agent token", tokenEnv)).
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(app.stdout, "%s agent listening on %s\n", SuccessStyle.Render("✓"), srv.Address())

			<-ctx.Done()
			return srv.Stop()
		},
	}
	serve.Flags().StringVar(&listen, "listen", "", "address to listen on (default "+defaultListenAddress+")")
	serve.Flags().StringVar(&node, "node", "", "node name reported to clients (default hostname)")
	serve.Flags().StringVar(&hostKey, "host-key", "", "persistent SSH host key file (default ephemeral)")

	agentCmd.AddCommand(serve)
	return agentCmd
}
