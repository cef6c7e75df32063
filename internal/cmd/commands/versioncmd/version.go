package versioncmd

import (
	"github.com/hashicorp-forge/conduit/internal/cmd/base"
	"github.com/hashicorp-forge/conduit/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the conduit version"
}

func (c *Command) Help() string {
	return `Usage: conduit version

  Prints the conduit version.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output("conduit " + version.Version)
	return 0
}
