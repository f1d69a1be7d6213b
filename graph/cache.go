package graph

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/discovery"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/metrics"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/publish"
	"github.com/hupe1980/agentgate/tool"
)

// CacheOptions holds configuration overrides passed to NewCache().
type CacheOptions struct {
	// MaxModelCalls is forwarded to every compiled graph.
	MaxModelCalls int

	// Logger receives cache lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records compile outcomes. Optional.
	Metrics *metrics.Metrics
}

// Cache serves a compiled Graph, recompiling only when the discovered tool
// set actually changes. Every recompilation reuses the same thread store
// handle, so conversation history and suspended decisions survive a tool-set
// change.
//
// Tool changes detected between two calls are pushed to the change publisher
// best-effort: a publish failure is logged and buffered by the publisher but
// never delays or fails graph retrieval.
type Cache struct {
	*core.LoggerAdapter
	metrics *metrics.Metrics

	discovery *discovery.Service
	publisher *publish.Publisher
	store     core.ThreadStore
	model     model.Model

	maxModelCalls int

	mu          sync.Mutex
	graph       *Graph
	fingerprint string
}

// NewCache creates a graph cache. The first Graph call compiles; later calls
// return the cached instance until discovery reports a different tool set.
func NewCache(m model.Model, disc *discovery.Service, pub *publish.Publisher, store core.ThreadStore, optFns ...func(o *CacheOptions)) *Cache {
	opts := CacheOptions{
		MaxModelCalls: 25,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		metrics:       opts.Metrics,
		discovery:     disc,
		publisher:     pub,
		store:         store,
		model:         m,
		maxModelCalls: opts.MaxModelCalls,
	}
}

// Graph returns the current compiled graph, running a discovery pass first.
//
// A discovery error (naming violation, duplicate names) aborts recompilation:
// the previously compiled graph keeps serving if one exists, otherwise the
// error is returned. The whole sequence runs under a single lock so two
// concurrent callers cannot compile against each other.
func (c *Cache) Graph(ctx context.Context) (*Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	descriptors, err := c.discovery.Discover(ctx)
	if err != nil {
		if c.graph != nil {
			c.LogWarn("graph.cache.discovery_failed", "error", err, "action", "serving previous graph")
			c.metrics.RecordGraphCompile("fallback")
			return c.graph, nil
		}

		return nil, fmt.Errorf("tool discovery: %w", err)
	}

	added, removed := c.discovery.Changes(descriptors)
	if len(added) > 0 || len(removed) > 0 {
		c.publisher.PublishChanges(ctx, added, removed)
	}

	fingerprint := Fingerprint(descriptors)

	if c.graph != nil && fingerprint == c.fingerprint {
		c.metrics.RecordGraphCompile("hit")
		return c.graph, nil
	}

	tools := make([]tool.Tool, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, d.Tool)
	}

	c.graph = New(c.model, tools, c.store, func(o *Options) {
		o.MaxModelCalls = c.maxModelCalls
		o.Logger = c.Logger()
		o.Metrics = c.metrics
	})
	c.fingerprint = fingerprint

	c.LogInfo("graph.cache.compiled", "tool_count", len(tools), "fingerprint", fingerprint)
	c.metrics.RecordGraphCompile("compile")

	return c.graph, nil
}

// Fingerprint returns the tool-set fingerprint of the cached graph, or the
// empty string before the first compilation.
func (c *Cache) Fingerprint() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fingerprint
}

// Fingerprint computes the stable identity of a tool set: an md5 hex digest
// over the sorted tool signatures. Discovery order does not influence the
// result, so a reordered but otherwise identical tool set never triggers a
// recompilation.
func Fingerprint(descriptors []discovery.Descriptor) string {
	signatures := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		signatures = append(signatures, d.Signature())
	}

	sort.Strings(signatures)

	sum := md5.Sum([]byte(strings.Join(signatures, "|")))

	return hex.EncodeToString(sum[:])
}
