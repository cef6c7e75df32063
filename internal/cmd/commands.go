package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/conduit/internal/cmd/base"
	"github.com/hashicorp-forge/conduit/internal/cmd/commands/apis"
	"github.com/hashicorp-forge/conduit/internal/cmd/commands/call"
	"github.com/hashicorp-forge/conduit/internal/cmd/commands/sessions"
	"github.com/hashicorp-forge/conduit/internal/cmd/commands/versioncmd"
)

// Commands is the CLI command registry, populated by initCommands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(ui, log)

	Commands = map[string]cli.CommandFactory{
		"call": func() (cli.Command, error) {
			return &call.Command{Command: b}, nil
		},
		"apis": func() (cli.Command, error) {
			return &apis.Command{Command: b}, nil
		},
		"apis list": func() (cli.Command, error) {
			return &apis.ListCommand{Command: b}, nil
		},
		"apis endpoints": func() (cli.Command, error) {
			return &apis.EndpointsCommand{Command: b}, nil
		},
		"apis test": func() (cli.Command, error) {
			return &apis.TestCommand{Command: b}, nil
		},
		"sessions": func() (cli.Command, error) {
			return &sessions.Command{Command: b}, nil
		},
		"sessions list": func() (cli.Command, error) {
			return &sessions.ListCommand{Command: b}, nil
		},
		"sessions show": func() (cli.Command, error) {
			return &sessions.ShowCommand{Command: b}, nil
		},
		"sessions history": func() (cli.Command, error) {
			return &sessions.HistoryCommand{Command: b}, nil
		},
		"sessions delete": func() (cli.Command, error) {
			return &sessions.DeleteCommand{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &versioncmd.Command{Command: b}, nil
		},
	}
}
