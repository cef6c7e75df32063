// Package manager ties the connector, transformer, and store together behind
// one facade. It owns the configured API set and shared client settings; each
// invocation runs through a per-API connector.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/conduit/pkg/connector"
	"github.com/hashicorp-forge/conduit/pkg/store"
	"github.com/hashicorp-forge/conduit/pkg/structured"
	"github.com/hashicorp-forge/conduit/pkg/transform"
)

var (
	// ErrAPINotFound is returned when the named API is not configured.
	ErrAPINotFound = errors.New("api not found")

	// ErrAPIDisabled is returned when the named API exists but is disabled.
	// No network traffic is attempted for disabled APIs.
	ErrAPIDisabled = errors.New("api disabled")
)

// Manager coordinates API invocation, transformation, and storage.
type Manager struct {
	settings    connector.Settings
	store       *store.Store
	transformer *transform.Transformer
	logger      hclog.Logger

	mu         sync.RWMutex
	apis       map[string]*connector.APIConfig
	connectors map[string]*connector.Connector
}

// Result is the outcome of one invocation: the raw decoded response, plus the
// transformed value when a transform spec was supplied. Warnings carries
// advisory transform errors for steps that were skipped.
type Result struct {
	Response    *connector.Response
	Transformed *structured.Value
	Warnings    error
}

// StoreResult extends Result with storage accounting.
type StoreResult struct {
	Result
	SessionID    string
	RecordsAdded int64
}

// New builds a manager over the given API set.
func New(apis []*connector.APIConfig, settings connector.Settings, st *store.Store, logger hclog.Logger) (*Manager, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("manager")

	m := &Manager{
		settings:    settings,
		store:       st,
		transformer: transform.New(logger),
		logger:      logger,
		apis:        map[string]*connector.APIConfig{},
		connectors:  map[string]*connector.Connector{},
	}
	for _, cfg := range apis {
		if err := m.Register(cfg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds or replaces an API configuration. The configuration is
// validated before it becomes visible.
func (m *Manager) Register(cfg *connector.APIConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration for API %q: %w", cfg.Name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.apis[cfg.Name] = cfg
	delete(m.connectors, cfg.Name)
	m.logger.Debug("api registered", "api", cfg.Name, "endpoints", len(cfg.Endpoints), "enabled", cfg.Enabled)
	return nil
}

// APIs returns the configured API names, sorted.
func (m *Manager) APIs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.apis))
	for name := range m.apis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoints returns the endpoint set of one API.
func (m *Manager) Endpoints(apiName string) (map[string]connector.EndpointConfig, error) {
	c, err := m.connector(apiName)
	if err != nil {
		return nil, err
	}
	return c.Endpoints(), nil
}

// Call invokes one endpoint, optionally applying a transform spec to the
// decoded response. Transform step failures are advisory and surface in
// Result.Warnings, never as the returned error.
func (m *Manager) Call(ctx context.Context, apiName, endpointName string, params map[string]interface{}, spec *transform.Spec) (*Result, error) {
	c, err := m.connector(apiName)
	if err != nil {
		return nil, err
	}

	resp, err := c.Call(ctx, endpointName, params)
	if err != nil {
		return nil, err
	}

	res := &Result{Response: resp}
	if spec != nil && !spec.IsZero() {
		transformed, warn := m.transformer.Apply(resp.Data, spec)
		res.Transformed = &transformed
		res.Warnings = warn
	}
	return res, nil
}

// CallAndStore invokes an endpoint and appends the result to a session,
// creating the session when sessionID is empty. The raw response is always
// what gets hashed for deduplication; the transformed value rides along.
func (m *Manager) CallAndStore(ctx context.Context, apiName, endpointName string, params map[string]interface{}, spec *transform.Spec, sessionID, sessionName string) (*StoreResult, error) {
	if m.store == nil {
		return nil, errors.New("storage is not configured")
	}

	res, err := m.Call(ctx, apiName, endpointName, params, spec)
	if err != nil {
		return nil, err
	}

	if sessionID == "" {
		session, err := m.store.CreateSession(sessionName, apiName, endpointName, "")
		if err != nil {
			return nil, err
		}
		sessionID = session.SessionID
	}

	added, err := m.store.Append(sessionID, res.Response.Data, res.Transformed, params)
	if err != nil {
		return nil, err
	}

	m.logger.Info("call stored",
		"api", apiName,
		"endpoint", endpointName,
		"session_id", sessionID,
		"records_added", added,
	)

	return &StoreResult{
		Result:       *res,
		SessionID:    sessionID,
		RecordsAdded: added,
	}, nil
}

// TestConnection performs a lightweight authenticated probe of an API.
func (m *Manager) TestConnection(ctx context.Context, apiName string) (*connector.ConnectionInfo, error) {
	c, err := m.connector(apiName)
	if err != nil {
		return nil, err
	}
	return c.TestConnection(ctx)
}

// Store exposes the underlying record store for session management.
func (m *Manager) Store() *store.Store {
	return m.store
}

// Transformer exposes the shared transformer for previews.
func (m *Manager) Transformer() *transform.Transformer {
	return m.transformer
}

// connector returns the cached connector for an API, building it on first
// use. Disabled APIs are rejected before any connector exists.
func (m *Manager) connector(apiName string) (*connector.Connector, error) {
	m.mu.RLock()
	cfg, ok := m.apis[apiName]
	c := m.connectors[apiName]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAPINotFound, apiName)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s", ErrAPIDisabled, apiName)
	}
	if c != nil {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c := m.connectors[apiName]; c != nil {
		return c, nil
	}

	c, err := connector.New(cfg, m.settings, m.logger)
	if err != nil {
		return nil, err
	}
	m.connectors[apiName] = c
	return c, nil
}
