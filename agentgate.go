// Package agentgate provides a high-level façade over the run orchestrator
// and its service objects (tool discovery, change publishing, the graph
// cache and thread sessions). Most applications interact with this package
// by:
//  1. Creating an AgentGate via New() or NewFromConfig() (optionally
//     overriding the model, store, queue, or remote tool servers)
//  2. Registering built-in tools (Register)
//  3. Serving the HTTP surface (Server) or driving turns directly
//     (Run, Resume)
//
// The façade wires every dependency explicitly; there is no global state.
// All defaults are safe for local development and testing: in-memory
// sessions and queue, a mock model, and no remote servers. Production
// deployments supply a Redis-backed queue, a real model provider, and a
// structured logger.
package agentgate

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentgate/api"
	"github.com/hupe1980/agentgate/config"
	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/discovery"
	"github.com/hupe1980/agentgate/graph"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/mcp"
	"github.com/hupe1980/agentgate/metrics"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/model/anthropic"
	"github.com/hupe1980/agentgate/model/openai"
	"github.com/hupe1980/agentgate/publish"
	"github.com/hupe1980/agentgate/queue"
	"github.com/hupe1980/agentgate/queue/redis"
	"github.com/hupe1980/agentgate/runner"
	"github.com/hupe1980/agentgate/session"
	"github.com/hupe1980/agentgate/tool"
)

// Options configures the AgentGate instance.
type Options struct {
	// Config supplies service settings: the publish queue key and buffer,
	// discovery timeouts, and the Redis connection. Defaults to
	// config.Default().
	Config *config.Config

	// Model generates assistant turns. Defaults to a MockModel suitable for
	// local development and tests; use NewFromConfig to select a provider
	// from configuration.
	Model model.Model

	// Store persists conversation threads. Defaults to in-memory.
	Store core.ThreadStore

	// Queue carries tool change messages. Defaults to a Redis queue when
	// the config enables one, in-memory otherwise.
	Queue core.Queue

	// BuiltIns are the locally bundled tools registered at construction.
	BuiltIns []tool.Tool

	// Servers are remote MCP tool providers. Defaults to clients for the
	// config's discovery servers.
	Servers []*mcp.Client

	// Logger receives events from every component. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records run, tool, discovery and publish outcomes. Nil
	// disables collection.
	Metrics *metrics.Metrics
}

// AgentGate aggregates the orchestrator and the service objects it runs on.
type AgentGate struct {
	cfg       *config.Config
	queue     core.Queue
	store     core.ThreadStore
	discovery *discovery.Service
	publisher *publish.Publisher
	cache     *graph.Cache
	runner    *runner.Runner
	handler   *api.Handler
}

// New creates a fully wired AgentGate instance with optional overrides. Any
// unset service is initialized from the config, falling back to an
// in-memory implementation.
func New(optFns ...func(o *Options)) *AgentGate {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Model == nil {
		opts.Model = model.NewMockModel("mock-model", "mock")
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}

	if opts.Queue == nil {
		opts.Queue = newQueue(opts.Config, opts.Logger)
	}

	if opts.Servers == nil {
		opts.Servers = newServers(opts.Config, opts.Logger)
	}

	disc := discovery.New(func(o *discovery.Options) {
		o.BuiltIns = opts.BuiltIns
		o.Servers = opts.Servers
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	pub := publish.New(opts.Queue, func(o *publish.Options) {
		o.QueueKey = opts.Config.Redis.QueueKey
		o.MaxBuffered = opts.Config.Publisher.BufferSize
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	cache := graph.NewCache(opts.Model, disc, pub, opts.Store, func(o *graph.CacheOptions) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	r := runner.New(cache, opts.Store, disc, func(o *runner.Options) {
		o.ResyncTimeout = opts.Config.Discovery.ResyncTimeout()
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	h := api.NewHandler(r, opts.Queue, func(o *api.Options) {
		o.Logger = opts.Logger
	})

	return &AgentGate{
		cfg:       opts.Config,
		queue:     opts.Queue,
		store:     opts.Store,
		discovery: disc,
		publisher: pub,
		cache:     cache,
		runner:    r,
		handler:   h,
	}
}

// NewFromConfig creates an AgentGate whose model is selected by the config's
// provider, on top of the same wiring as New. Overrides passed in optFns
// still win.
func NewFromConfig(cfg *config.Config, optFns ...func(o *Options)) (*AgentGate, error) {
	m, err := newModel(cfg)
	if err != nil {
		return nil, err
	}

	merged := append([]func(o *Options){func(o *Options) {
		o.Config = cfg
		o.Model = m
	}}, optFns...)

	return New(merged...), nil
}

func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Model.Name, "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

func newQueue(cfg *config.Config, logger logging.Logger) core.Queue {
	if !cfg.Redis.Enabled {
		return queue.NewInMemoryQueue()
	}

	return redis.New(cfg.Redis.Addr, func(o *redis.Options) {
		o.Password = cfg.Redis.Password
		o.DB = cfg.Redis.DB
		o.Logger = logger
	})
}

func newServers(cfg *config.Config, logger logging.Logger) []*mcp.Client {
	clients := make([]*mcp.Client, 0, len(cfg.Discovery.Servers))
	for _, s := range cfg.Discovery.Servers {
		clients = append(clients, mcp.NewClient(&mcp.ServerConfig{Name: s.Name, URL: s.URL}, func(o *mcp.ClientOptions) {
			o.Logger = logger
		}))
	}

	return clients
}

// Register adds built-in tools after construction. The next discovery pass
// picks them up and publishes the change.
func (g *AgentGate) Register(tools ...tool.Tool) error {
	for _, t := range tools {
		if err := g.discovery.Register(t); err != nil {
			return err
		}
	}

	return nil
}

// Run streams one conversational turn. See runner.Runner.Run.
func (g *AgentGate) Run(ctx context.Context, input runner.RunInput) <-chan core.Chunk {
	return g.runner.Run(ctx, input)
}

// Resume streams the continuation of a suspended turn. See
// runner.Runner.Resume.
func (g *AgentGate) Resume(ctx context.Context, input runner.ResumeInput) <-chan core.Chunk {
	return g.runner.Resume(ctx, input)
}

// UpdateWhitelists applies a whitelist change across conversations. See
// runner.Runner.UpdateWhitelists.
func (g *AgentGate) UpdateWhitelists(ctx context.Context, update runner.WhitelistUpdate) runner.WhitelistUpdateResult {
	return g.runner.UpdateWhitelists(ctx, update)
}

// Resync runs an on-demand discovery pass. See runner.Runner.Resync.
func (g *AgentGate) Resync(ctx context.Context, requestID string) (*runner.ResyncResult, error) {
	return g.runner.Resync(ctx, requestID)
}

// Server returns an echo server with all AgentGate routes registered.
func (g *AgentGate) Server() *echo.Echo {
	return api.NewServer(g.handler)
}

// Runner exposes the underlying orchestrator.
func (g *AgentGate) Runner() *runner.Runner { return g.runner }

// Discovery exposes the tool discovery service.
func (g *AgentGate) Discovery() *discovery.Service { return g.discovery }

// Publisher exposes the change publisher.
func (g *AgentGate) Publisher() *publish.Publisher { return g.publisher }

// Store exposes the thread store.
func (g *AgentGate) Store() core.ThreadStore { return g.store }

// Queue exposes the change queue.
func (g *AgentGate) Queue() core.Queue { return g.queue }
