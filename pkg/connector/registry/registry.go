package registry

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/core"
	"github.com/ajitpratap0/voterelay/pkg/errors"
)

// SinkFactory is a function that creates sink instances.
// It takes the resolved Config and a logger and returns an unconnected Sink.
type SinkFactory func(cfg *config.Config, logger *zap.Logger) (core.Sink, error)

// ConnectorInfo provides information about a sink
type ConnectorInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Selector is the WHICH_DBM / DB2_METHOD combination that picks the sink
	Selector string `json:"selector"`
}

// Registry manages sink registration and instantiation
type Registry struct {
	sinks map[string]SinkFactory
	infos map[string]*ConnectorInfo
	mu    sync.RWMutex
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new sink registry
func NewRegistry() *Registry {
	return &Registry{
		sinks: make(map[string]SinkFactory),
		infos: make(map[string]*ConnectorInfo),
	}
}

// RegisterSink registers a sink factory
func (r *Registry) RegisterSink(info *ConnectorInfo, factory SinkFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sinks[info.Name]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink %s already registered", info.Name)
	}

	r.sinks[info.Name] = factory
	r.infos[info.Name] = info
	return nil
}

// CreateSink creates a sink instance
func (r *Registry) CreateSink(name string, cfg *config.Config, logger *zap.Logger) (core.Sink, error) {
	r.mu.RLock()
	factory, exists := r.sinks[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "sink %s not found", name)
	}

	sink, err := factory(cfg, logger.With(zap.String("sink", name)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create sink "+name)
	}

	return sink, nil
}

// List returns the registered sinks sorted by name
func (r *Registry) List() []*ConnectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(r.infos))
	for _, info := range r.infos {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasSink checks if a sink is registered
func (r *Registry) HasSink(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sinks[name]
	return exists
}

// Global registry functions

// RegisterSink registers a sink in the global registry. It panics on a
// duplicate name, since registration happens from init functions.
func RegisterSink(info *ConnectorInfo, factory SinkFactory) {
	if err := globalRegistry.RegisterSink(info, factory); err != nil {
		panic(err)
	}
}

// CreateSink creates a sink from the global registry
func CreateSink(name string, cfg *config.Config, logger *zap.Logger) (core.Sink, error) {
	return globalRegistry.CreateSink(name, cfg, logger)
}

// List returns the sinks of the global registry
func List() []*ConnectorInfo {
	return globalRegistry.List()
}

// HasSink checks if a sink is registered in the global registry
func HasSink(name string) bool {
	return globalRegistry.HasSink(name)
}
