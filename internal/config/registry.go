package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cruso003/JobGenie-sub001/pkg/media"
	"github.com/cruso003/JobGenie-sub001/pkg/provider/live"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps names to constructors for live providers and media backends.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	live  map[string]func(ProviderConfig) (live.Provider, error)
	media map[string]func(MediaConfig) (media.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		live:  make(map[string]func(ProviderConfig) (live.Provider, error)),
		media: make(map[string]func(MediaConfig) (media.Device, error)),
	}
}

// RegisterLive registers a live provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLive(name string, factory func(ProviderConfig) (live.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[name] = factory
}

// RegisterMedia registers a media backend factory under name.
func (r *Registry) RegisterMedia(name string, factory func(MediaConfig) (media.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[name] = factory
}

// CreateLive instantiates the live provider registered under cfg.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateLive(cfg ProviderConfig) (live.Provider, error) {
	r.mu.RLock()
	factory, ok := r.live[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateMedia instantiates the media backend registered under cfg.Backend.
func (r *Registry) CreateMedia(cfg MediaConfig) (media.Device, error) {
	r.mu.RLock()
	factory, ok := r.media[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: media/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}
