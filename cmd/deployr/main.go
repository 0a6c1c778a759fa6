package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

// DeployFlags holds flags for the deploy command.
type DeployFlags struct {
	Name            string
	SkipPublish     bool
	AllowUnverified bool
}

// ServiceFlags holds the single-service selector used by most commands.
type ServiceFlags struct {
	Name string
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Name  string
	Limit int
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen   string
	BasePath string
}

// buildRoot wires all subcommands onto the root command.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	deployFlags := &DeployFlags{}
	restartFlags := &ServiceFlags{}
	stopFlags := &ServiceFlags{}
	statusFlags := &ServiceFlags{}
	verifyFlags := &ServiceFlags{}
	historyFlags := &HistoryFlags{}
	serveFlags := &ServeFlags{}

	c := command{global: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createDeployCommand(c, deployFlags),
		createRestartCommand(c, restartFlags),
		createStopCommand(c, stopFlags),
		createStatusCommand(c, statusFlags),
		createVerifyCommand(c, verifyFlags),
		createHistoryCommand(c, historyFlags),
		createServeCommand(c, serveFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "deployr",
		Short: "Redeploy and verify services over SSH",
		Long: `Deployr converges remote services to a running, verified state:
it pushes pending work, stops whatever matches the service pattern,
starts a fresh detached session, and polls the health endpoint.

Examples:
  deployr deploy --name=web "fix: handle nil session"
  deployr restart --name=web
  deployr status --name=web
  deployr serve                     # HTTP API over the same operations`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "deployr.toml", "path to TOML config file")
	return root
}

func createDeployCommand(c command, flags *DeployFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [message]",
		Short: "Publish pending changes and redeploy a service",
		Long: `Commit and push the configured repository (unless --skip-push),
then stop, start and verify the service.

Examples:
  deployr deploy --name=web "fix: handle nil session"
  deployr deploy --name=web --skip-push`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := ""
			if len(args) > 0 {
				message = args[0]
			}
			return c.Deploy(flags.Name, message, flags.SkipPublish, flags.AllowUnverified)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "service name (optional when config has one service)")
	cmd.Flags().BoolVar(&flags.SkipPublish, "skip-push", false, "skip the git commit-and-push step")
	cmd.Flags().BoolVar(&flags.AllowUnverified, "allow-unverified", false, "exit 0 even when the health check does not pass")
	return cmd
}

func createRestartCommand(c command, flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop and start a service without verifying",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(flags.Name)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "service name (optional when config has one service)")
	return cmd
}

func createStopCommand(c command, flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop all processes matching the service pattern",
		Long: `Stop everything on the host that matches the service's pattern
and tear down its session. Succeeds when nothing was running.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(flags.Name)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "service name (optional when config has one service)")
	return cmd
}

func createStatusCommand(c command, flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the service and its session are alive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(flags.Name)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "service name (optional when config has one service)")
	return cmd
}

func createVerifyCommand(c command, flags *ServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Poll the service health endpoint until healthy or timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Verify(flags.Name)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "service name (optional when config has one service)")
	return cmd
}

func createHistoryCommand(c command, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deploy outcomes",
		Long: `List recent deploy records from the configured history backend,
newest first. Without --name all services are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(flags.Name, flags.Limit)
		},
	}
	cmd.Flags().StringVarP(&flags.Name, "name", "n", "", "filter by service name")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum records to show")
	return cmd
}

func createServeCommand(c command, flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve the deploy operations over HTTP, plus /healthz and /metrics.
Listen address and base path come from [server] in the config file;
flags override it.

Examples:
  deployr serve --config=deployr.toml
  deployr serve --listen=:9090 --base-path=/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Serve(flags.Listen, flags.BasePath)
		},
	}
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&flags.BasePath, "base-path", "", "API base path (overrides config)")
	return cmd
}
