// Package cmd implements the agentkernel command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/agentkernel"
	"github.com/hupe1980/agentkernel/config"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	configFile string
	cfg        *config.Config
	// newKernel builds the kernel from the loaded config.
	newKernel func(cfg *config.Config) (*agentkernel.Kernel, error)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		newKernel: func(cfg *config.Config) (*agentkernel.Kernel, error) {
			return agentkernel.New(func(o *agentkernel.Options) { o.Config = cfg })
		},
	}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentkernel",
		Short: "Task orchestration kernel for language-model agents",
		Long: `agentkernel runs an HTTP and WebSocket backend that turns task requests
into tracked units of work handled by persona-fronted language-model agents,
and a tool-calling reasoning loop for interactive sessions.

Configuration is read from defaults, an optional YAML file and environment
variables such as PORT, ALLOWED_ORIGINS, DEFAULT_MODEL_PROVIDER and
OPENAI_API_KEY.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (YAML)")

	root.AddCommand(a.serveCommand(), a.chatCommand(), a.agentsCommand())
	return root
}

func (a *app) loadConfig() error {
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}
