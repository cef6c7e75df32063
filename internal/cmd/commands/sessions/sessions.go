package sessions

import (
	"flag"
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/conduit/internal/cmd/base"
	"github.com/hashicorp-forge/conduit/pkg/structured"
	"github.com/hashicorp-forge/conduit/pkg/transform"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Manage storage sessions"
}

func (c *Command) Help() string {
	return `Usage: conduit sessions <subcommand> [options]

  This command groups subcommands for inspecting and managing storage
  sessions.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}

type ListCommand struct {
	*base.Command

	flagConfig string
}

func (c *ListCommand) Synopsis() string {
	return "List storage sessions"
}

func (c *ListCommand) Help() string {
	return `Usage: conduit sessions list -config=<path>

  Lists all storage sessions, newest first.` +
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

	sessions, err := rt.Store.ListSessions()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if len(sessions) == 0 {
		c.UI.Info("no sessions")
		return 0
	}

	for _, s := range sessions {
		c.UI.Output(fmt.Sprintf("%s  %-20s %s/%s  %d record(s)  created %s",
			s.SessionID, s.SessionName, s.APIName, s.EndpointName,
			s.TotalRecords, s.CreatedAt.Format("2006-01-02 15:04:05")))
	}
	return 0
}

type ShowCommand struct {
	*base.Command

	flagConfig  string
	flagSession string
	flagLimit   int
	flagOffset  int
}

func (c *ShowCommand) Synopsis() string {
	return "Show a session's stored records"
}

func (c *ShowCommand) Help() string {
	return `Usage: conduit sessions show -config=<path> -session=<id>

  Prints a preview of the session's stored records, newest first.` +
		c.Flags().Help()
}

func (c *ShowCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("show", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagSession, "session", "", "(Required) Session ID.")
	f.IntVar(&c.flagLimit, "limit", 10, "Maximum number of records to show.")
	f.IntVar(&c.flagOffset, "offset", 0, "Number of records to skip.")
	return f
}

func (c *ShowCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagSession == "" {
		c.UI.Error("session flag is required")
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	records, err := rt.Store.List(c.flagSession, c.flagLimit, c.flagOffset)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	transformer := rt.Manager.Transformer()
	for _, r := range records {
		raw, err := r.Raw()
		if err != nil {
			c.UI.Warn(fmt.Sprintf("record %d is unreadable: %v", r.ID, err))
			continue
		}
		preview := transformer.Preview(raw, transform.PreviewOptions{})
		text, err := structured.EncodeJSONIndent(preview)
		if err != nil {
			c.UI.Warn(fmt.Sprintf("record %d is unreadable: %v", r.ID, err))
			continue
		}
		c.UI.Output(fmt.Sprintf("-- record %d (%s)\n%s", r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), text))
	}
	return 0
}

type HistoryCommand struct {
	*base.Command

	flagConfig  string
	flagSession string
}

func (c *HistoryCommand) Synopsis() string {
	return "Show a session's operation log"
}

func (c *HistoryCommand) Help() string {
	return `Usage: conduit sessions history -config=<path> -session=<id>

  Prints the session's operation audit log, newest first.` +
		c.Flags().Help()
}

func (c *HistoryCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("history", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagSession, "session", "", "(Required) Session ID.")
	return f
}

func (c *HistoryCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagSession == "" {
		c.UI.Error("session flag is required")
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	ops, err := rt.Store.Operations(c.flagSession)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	for _, op := range ops {
		c.UI.Output(fmt.Sprintf("%s  %-16s %d record(s)  %s",
			op.Timestamp.Format("2006-01-02 15:04:05"),
			op.OperationType, op.RecordsAffected, op.Details))
	}
	return 0
}

type DeleteCommand struct {
	*base.Command

	flagConfig  string
	flagSession string
}

func (c *DeleteCommand) Synopsis() string {
	return "Delete a storage session"
}

func (c *DeleteCommand) Help() string {
	return `Usage: conduit sessions delete -config=<path> -session=<id>

  Deletes the session's record file, its operation log, and its metadata.
  Other sessions are untouched.` +
		c.Flags().Help()
}

func (c *DeleteCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("delete", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagSession, "session", "", "(Required) Session ID.")
	return f
}

func (c *DeleteCommand) Run(args []string) int {
	if err := c.Flags().Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagSession == "" {
		c.UI.Error("session flag is required")
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	if err := rt.Store.DeleteSession(c.flagSession); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	c.UI.Info(fmt.Sprintf("session %s deleted", c.flagSession))
	return 0
}
