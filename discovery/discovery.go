package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/internal/util"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/mcp"
	"github.com/hupe1980/agentgate/metrics"
	"github.com/hupe1980/agentgate/tool"
)

// toolNamePattern restricts tool names to alphanumerics, underscores and hyphens.
var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Descriptor pairs a callable tool with the source it was discovered from.
// Source is core.SourceBuiltIn for locally registered tools and the configured
// server name for remote tools.
type Descriptor struct {
	Tool   tool.Tool
	Source string
}

// Info returns the wire-level view of the descriptor used in change messages
// and resync responses.
func (d Descriptor) Info() core.ToolInfo {
	return core.ToolInfo{Name: d.Tool.Name(), MCPServerName: d.Source}
}

// Signature returns a stable identity string for the tool, combining its name,
// description and canonical parameter schema. Graph recompilation is keyed off
// a hash of all signatures, so two discovery passes over an unchanged tool set
// must produce byte-identical signatures.
func (d Descriptor) Signature() string {
	schema, err := util.CanonicalJSON(d.Tool.Parameters())
	if err != nil {
		// fmt prints map keys in sorted order, so the fallback stays stable.
		schema = fmt.Sprintf("%v", d.Tool.Parameters())
	}
	return d.Tool.Name() + "|" + d.Tool.Description() + "|" + schema
}

// Options configures a discovery Service.
type Options struct {
	// BuiltIns is the explicit registration list of locally bundled tools.
	BuiltIns []tool.Tool

	// Servers lists the remote MCP servers to enumerate tools from.
	Servers []*mcp.Client

	// Logger receives discovery lifecycle events. Defaults to NoOpLogger.
	Logger logging.Logger

	// Metrics records discovery outcomes and per-source tool counts. Optional.
	Metrics *metrics.Metrics
}

// Service enumerates the currently available tools from all configured
// sources, validates their names, and tracks an inventory snapshot so callers
// can ask what changed since the last pass.
//
// Remote connectivity failures degrade gracefully: the service returns
// built-in tools only and remembers the failure, skipping the remote attempt
// on subsequent passes until ResetRemoteFailure is called. Naming violations
// (format, server prefix, duplicates) are hard errors because they indicate a
// configuration problem rather than a transient fault.
type Service struct {
	*core.LoggerAdapter
	metrics *metrics.Metrics

	servers []*mcp.Client

	mu           sync.Mutex
	builtIns     []tool.Tool
	snapshot     map[string]struct{}
	remoteFailed bool
}

// New creates a discovery Service with optional configuration.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Service{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		metrics:       opts.Metrics,
		builtIns:      append([]tool.Tool(nil), opts.BuiltIns...),
		servers:       opts.Servers,
	}
}

// Register adds a built-in tool to the explicit registration list. It fails
// when the name violates the naming rules or is already registered locally.
// Collisions with remote tools surface later, during Discover.
func (s *Service) Register(t tool.Tool) error {
	if t == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	if err := validateName(t.Name()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.builtIns {
		if existing.Name() == t.Name() {
			return fmt.Errorf("tool %q is already registered", t.Name())
		}
	}

	s.builtIns = append(s.builtIns, t)

	return nil
}

// Discover enumerates tools from all sources and returns them in a stable
// order: built-ins in registration order, then each remote server's tools in
// configured server order.
//
// A remote connectivity failure is not an error: the service logs it, flags
// the remote layer as failed and returns built-in tools only. The flag makes
// later passes skip the remote attempt entirely, avoiding a slow timeout on
// every request, until ResetRemoteFailure clears it. A failure caused by the
// caller's own context deadline is propagated instead, since it says nothing
// about the health of the remote servers.
//
// Validation failures are hard errors: every name must match
// ^[a-zA-Z0-9_-]+$, every remote tool name must carry its server's
// "{server}-" prefix, and no two tools may share a name across any
// combination of sources.
func (s *Service) Discover(ctx context.Context) ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]string, len(s.builtIns))
	descriptors := make([]Descriptor, 0, len(s.builtIns))

	for _, t := range s.builtIns {
		d := Descriptor{Tool: t, Source: core.SourceBuiltIn}
		if err := s.validate(d, seen); err != nil {
			s.metrics.RecordError("discovery", "validation")
			return nil, err
		}

		descriptors = append(descriptors, d)
	}

	if len(s.servers) == 0 {
		s.metrics.RecordDiscovery("success", countBySource(descriptors))
		return descriptors, nil
	}

	if s.remoteFailed {
		s.LogDebug("discovery.remote.skipped", "reason", "previous failure, awaiting reset")
		s.metrics.RecordDiscovery("degraded", countBySource(descriptors))
		return descriptors, nil
	}

	remote, err := s.discoverRemote(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote tool discovery: %w", ctx.Err())
		}

		s.remoteFailed = true
		s.LogWarn("discovery.remote.failed", "error", err)
		s.metrics.RecordDiscovery("degraded", countBySource(descriptors))

		return descriptors, nil
	}

	for _, d := range remote {
		if err := s.validate(d, seen); err != nil {
			s.metrics.RecordError("discovery", "validation")
			return nil, err
		}

		descriptors = append(descriptors, d)
	}

	s.metrics.RecordDiscovery("success", countBySource(descriptors))

	return descriptors, nil
}

// discoverRemote enumerates every configured server. Any single failure fails
// the whole remote layer; partial remote inventories would make the diff
// report tools as removed that merely live on an unreachable server.
func (s *Service) discoverRemote(ctx context.Context) ([]Descriptor, error) {
	var descriptors []Descriptor

	for _, client := range s.servers {
		if !client.Connected() {
			if err := client.Connect(ctx); err != nil {
				return nil, fmt.Errorf("connect to server %q: %w", client.Name(), err)
			}
		}

		defs, err := client.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tools from server %q: %w", client.Name(), err)
		}

		for _, def := range defs {
			descriptors = append(descriptors, Descriptor{
				Tool:   mcp.NewRemoteTool(client, def),
				Source: client.Name(),
			})
		}
	}

	return descriptors, nil
}

// validate enforces the naming rules for a single descriptor and records its
// name in seen.
func (s *Service) validate(d Descriptor, seen map[string]string) error {
	name := d.Tool.Name()

	if err := validateName(name); err != nil {
		return err
	}

	if d.Source != core.SourceBuiltIn && !strings.HasPrefix(name, d.Source+"-") {
		return fmt.Errorf("tool %q from server %q must be named with prefix %q", name, d.Source, d.Source+"-")
	}

	if prev, ok := seen[name]; ok {
		return fmt.Errorf("duplicate tool name %q (provided by both %s and %s)", name, prev, d.Source)
	}

	seen[name] = d.Source

	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}

	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("tool name %q contains invalid characters (allowed: letters, digits, underscore, hyphen)", name)
	}

	return nil
}

// Changes diffs the given tool set against the inventory snapshot of the
// previous call and replaces the snapshot as a side effect. The first call
// reports every tool as added. Removed entries carry core.SourceUnknown
// because the snapshot stores names only; the originating server of a tool
// that is gone is no longer known.
//
// Added entries keep discovery order, removed entries are sorted by name, so
// repeated identical inputs produce identical outputs. Use Inventory for a
// read-only peek that leaves the snapshot untouched.
func (s *Service) Changes(current []Descriptor) (added, removed []core.ToolInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(current))

	for _, d := range current {
		name := d.Tool.Name()
		next[name] = struct{}{}

		if _, ok := s.snapshot[name]; !ok {
			added = append(added, d.Info())
		}
	}

	for name := range s.snapshot {
		if _, ok := next[name]; !ok {
			removed = append(removed, core.ToolInfo{Name: name, MCPServerName: core.SourceUnknown})
		}
	}

	sort.Slice(removed, func(i, j int) bool { return removed[i].Name < removed[j].Name })

	s.snapshot = next

	return added, removed
}

// Inventory returns the sorted tool names of the current snapshot without
// contacting any server or mutating state.
func (s *Service) Inventory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.snapshot))
	for name := range s.snapshot {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// ResetRemoteFailure clears the remembered remote failure so the next
// Discover retries the remote servers.
func (s *Service) ResetRemoteFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remoteFailed {
		s.LogInfo("discovery.remote.reset")
	}

	s.remoteFailed = false
}

func countBySource(descriptors []Descriptor) map[string]int {
	counts := make(map[string]int, 4)
	for _, d := range descriptors {
		counts[d.Source]++
	}

	return counts
}
