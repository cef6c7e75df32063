package call

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp-forge/conduit/internal/cmd/base"
	"github.com/hashicorp-forge/conduit/pkg/codec"
	"github.com/hashicorp-forge/conduit/pkg/manager"
	"github.com/hashicorp-forge/conduit/pkg/structured"
	"github.com/hashicorp-forge/conduit/pkg/transform"
)

type Command struct {
	*base.Command

	flagConfig      string
	flagAPI         string
	flagEndpoint    string
	flagParams      paramFlags
	flagTransform   string
	flagStore       bool
	flagSession     string
	flagSessionName string
	flagOutput      string
}

// paramFlags collects repeated -param key=value flags.
type paramFlags map[string]interface{}

func (p paramFlags) String() string {
	return fmt.Sprintf("%v", map[string]interface{}(p))
}

func (p paramFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	p[key] = value
	return nil
}

func (c *Command) Synopsis() string {
	return "Invoke a configured API endpoint"
}

func (c *Command) Help() string {
	return `Usage: conduit call -config=<path> -api=<name> -endpoint=<name> [options]

  Invokes one endpoint of a configured API, optionally applying a
  transformation to the decoded response and appending the result to a
  storage session.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	if c.flagParams == nil {
		c.flagParams = paramFlags{}
	}

	f := base.NewFlagSet(flag.NewFlagSet("call", flag.ExitOnError))
	f.StringVar(&c.flagConfig, "config", "", "(Required) Path to the conduit config file.")
	f.StringVar(&c.flagAPI, "api", "", "(Required) Name of the configured API.")
	f.StringVar(&c.flagEndpoint, "endpoint", "", "(Required) Name of the endpoint to invoke.")
	f.Var(&c.flagParams, "param", "Request parameter as key=value. May be repeated.")
	f.StringVar(&c.flagTransform, "transform", "", "Path to a JSON transformation spec file.")
	f.BoolVar(&c.flagStore, "store", false, "Append the result to a storage session.")
	f.StringVar(&c.flagSession, "session", "", "Existing session ID to append to. Implies -store.")
	f.StringVar(&c.flagSessionName, "session-name", "", "Name for a newly created session.")
	f.StringVar(&c.flagOutput, "output", "json", "Output format: json, csv, xml, tabular, or list.")
	return f
}

func (c *Command) Run(args []string) int {
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagAPI == "" || c.flagEndpoint == "" {
		c.UI.Error("api and endpoint flags are required")
		return 1
	}

	spec, err := c.loadSpec()
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	rt, err := c.BuildRuntime(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}
	defer rt.Close()

	ctx := context.Background()

	var result *manager.Result
	if c.flagStore || c.flagSession != "" {
		stored, err := rt.Manager.CallAndStore(ctx, c.flagAPI, c.flagEndpoint, c.flagParams, spec, c.flagSession, c.flagSessionName)
		if err != nil {
			c.UI.Error(fmt.Sprintf("call failed: %v", err))
			return 1
		}
		c.UI.Info(fmt.Sprintf("session %s: %d record(s) added", stored.SessionID, stored.RecordsAdded))
		result = &stored.Result
	} else {
		res, err := rt.Manager.Call(ctx, c.flagAPI, c.flagEndpoint, c.flagParams, spec)
		if err != nil {
			c.UI.Error(fmt.Sprintf("call failed: %v", err))
			return 1
		}
		result = res
	}

	if result.Warnings != nil {
		c.UI.Warn(fmt.Sprintf("transform warnings: %v", result.Warnings))
	}

	encoded, err := codec.Encode(resultValue(result.Response.Data, result.Transformed), codec.Format(c.flagOutput))
	if err != nil {
		c.UI.Error(fmt.Sprintf("error encoding output: %v", err))
		return 1
	}

	out := encoded.Text
	if out == "" && (encoded.Format == codec.FormatTabular || encoded.Format == codec.FormatList) {
		out, err = structured.EncodeJSONIndent(encoded.Value)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error encoding output: %v", err))
			return 1
		}
	}
	c.UI.Output(out)
	return 0
}

func resultValue(raw structured.Value, transformed *structured.Value) structured.Value {
	if transformed != nil {
		return *transformed
	}
	return raw
}

func (c *Command) loadSpec() (*transform.Spec, error) {
	if c.flagTransform == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.flagTransform)
	if err != nil {
		return nil, fmt.Errorf("reading transform spec: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing transform spec: %v", err)
	}

	spec, err := transform.SpecFromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid transform spec: %v", err)
	}
	return spec, nil
}
