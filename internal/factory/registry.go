// Package factory wires backend names to conversation client
// constructors. Registries are built explicitly at startup; nothing
// registers itself at import time.
package factory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/adapters/bedrock"
	"github.com/mikey/llm-chat-client/internal/adapters/cerebras"
	"github.com/mikey/llm-chat-client/internal/adapters/gemini"
	"github.com/mikey/llm-chat-client/internal/adapters/mockai"
	"github.com/mikey/llm-chat-client/internal/config"
	"github.com/mikey/llm-chat-client/internal/core"
)

// Options carries everything a backend constructor may need. Fields a
// backend does not use are ignored.
type Options struct {
	APIKey string
	Config *config.Config
	Logger *zap.Logger
}

// Constructor builds one conversation client from options.
type Constructor func(opts Options) (core.ConversationClient, error)

// Registry maps backend names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register binds a constructor to a backend name, replacing any
// previous binding.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// Names returns the registered backend names, sorted. The slice is a
// copy.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateClient builds a client for the named backend.
func (r *Registry) CreateClient(name string, opts Options) (core.ConversationClient, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q (registered backends: %s)",
			core.ErrInvalidArgument, name, strings.Join(r.Names(), ", "))
	}
	return ctor(opts)
}

// NewDefaultRegistry returns a registry with every built-in backend.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("cerebras", func(opts Options) (core.ConversationClient, error) {
		apiKey := opts.APIKey
		baseURL := ""
		if opts.Config != nil {
			cc := opts.Config.GetCerebras()
			baseURL = cc.BaseURL
			if apiKey == "" {
				apiKey = cc.APIKey
			}
		}
		return cerebras.NewClient(apiKey, baseURL, opts.Logger)
	})

	r.Register("test", func(opts Options) (core.ConversationClient, error) {
		return cerebras.NewTestClient(opts.Logger), nil
	})

	r.Register("mock", func(opts Options) (core.ConversationClient, error) {
		return mockai.NewClient(opts.Logger), nil
	})

	r.Register("bedrock", func(opts Options) (core.ConversationClient, error) {
		cfg := opts.Config
		if cfg == nil {
			cfg = config.NewFromViper(config.NewEmptyViper())
		}
		bc := cfg.GetBedrock()
		return bedrock.NewClient(context.Background(), bc.Region, bc.ModelID, bc.MaxTokens, bc.Temperature, bc.TopP, opts.Logger)
	})

	r.Register("gemini", func(opts Options) (core.ConversationClient, error) {
		cfg := opts.Config
		if cfg == nil {
			cfg = config.NewFromViper(config.NewEmptyViper())
		}
		gc := cfg.GetGemini()
		apiKey := opts.APIKey
		if apiKey == "" {
			apiKey = gc.APIKey
		}
		return gemini.NewClient(context.Background(), apiKey, gc.ModelName, gc.MaxTokens, gc.Temperature, gc.TopP, opts.Logger)
	})

	return r
}
