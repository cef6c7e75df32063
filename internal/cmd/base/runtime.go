package base

import (
	"fmt"

	"github.com/hashicorp-forge/conduit/internal/config"
	"github.com/hashicorp-forge/conduit/pkg/manager"
	"github.com/hashicorp-forge/conduit/pkg/store"
)

// Runtime is the assembled application a command runs against.
type Runtime struct {
	Config  *config.Config
	Manager *manager.Manager
	Store   *store.Store
}

// Close releases the runtime's storage resources.
func (r *Runtime) Close() {
	if r.Store != nil {
		_ = r.Store.Close()
	}
}

// BuildRuntime loads the configuration file and wires up storage and the
// manager.
func (c *Command) BuildRuntime(configPath string) (*Runtime, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config flag is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	apis, err := cfg.APIConfigs()
	if err != nil {
		return nil, fmt.Errorf("invalid api configuration: %w", err)
	}

	st, err := store.Open(cfg.StorageDir, c.Log)
	if err != nil {
		return nil, err
	}

	mgr, err := manager.New(apis, cfg.ClientSettings(), st, c.Log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &Runtime{Config: cfg, Manager: mgr, Store: st}, nil
}
