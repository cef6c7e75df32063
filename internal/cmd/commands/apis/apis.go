package apis

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/conduit/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Inspect configured APIs"
}

func (c *Command) Help() string {
	return `Usage: conduit apis <subcommand> [options]

  This command groups subcommands for inspecting the configured APIs.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

type ListCommand struct {
	*base.Command

	flagConfig string
}

func (c *ListCommand) Synopsis() string {
	return "List configured APIs"
}

func (c *ListCommand) Help() string {
	return `Usage: conduit apis list -config=<path>

  Lists the names of all configured APIs.` +
		c.Flags().Help()
}

func (c *ListCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("list", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	return f
}

func (c *ListCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	for _, name := range rt.Manager.APIs() {
		c.UI.Output(name)
	}
	return 0
}

type EndpointsCommand struct {
	*base.Command

	flagConfig string
	flagAPI    string
}

func (c *EndpointsCommand) Synopsis() string {
	return "List the endpoints of an API"
}

func (c *EndpointsCommand) Help() string {
	return `Usage: conduit apis endpoints -config=<path> -api=<name>

  Lists the endpoints of one configured API with their methods and paths.` +
		c.Flags().Help()
}

func (c *EndpointsCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("endpoints", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagAPI, "api", "", "(Required) Name of the configured API.")
	return f
}

func (c *EndpointsCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagAPI == "" {
		c.UI.Error("api flag is required")
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	endpoints, err := rt.Manager.Endpoints(c.flagAPI)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ep := endpoints[name]
		line := fmt.Sprintf("%-24s %-6s %s", name, ep.Method, ep.Path)
		if ep.Description != "" {
			line += "  # " + ep.Description
		}
		c.UI.Output(line)
	}
	return 0
}

type TestCommand struct {
	*base.Command

	flagConfig string
	flagAPI    string
}

func (c *TestCommand) Synopsis() string {
	return "Probe an API's base URL with the configured credentials"
}

func (c *TestCommand) Help() string {
	return `Usage: conduit apis test -config=<path> -api=<name>

  Performs a single authenticated request against the API's base URL and
  reports the status and latency.` +
		c.Flags().Help()
}

func (c *TestCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("test", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagAPI, "api", "", "(Required) Name of the configured API.")
	return f
}

func (c *TestCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagAPI == "" {
		c.UI.Error("api flag is required")
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	info, err := rt.Manager.TestConnection(context.Background(), c.flagAPI)
	if info != nil {
		c.UI.Output(fmt.Sprintf("%s: status %d in %dms", info.URL, info.StatusCode, info.ElapsedMS))
	}
	if err != nil {
		c.UI.Error(fmt.Sprintf("connection test failed: %v", err))
		return 1
	}
	return 0
}
