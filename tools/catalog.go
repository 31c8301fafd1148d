package tools

import (
	"context"
	"slices"
	"strconv"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/provider"
	"github.com/kbukum/kalikit/tools/nm"
	"github.com/kbukum/kalikit/tools/tshark"
)

// Params are the named string parameters of an action call.
type Params map[string]string

// Param describes one action parameter.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
	Default     string `json:"default,omitempty" yaml:"default,omitempty"`
}

// Action is one named tool operation.
type Action struct {
	Name        string  `json:"name" yaml:"name"`
	Tool        string  `json:"tool" yaml:"tool"`
	Description string  `json:"description" yaml:"description"`
	Params      []Param `json:"params" yaml:"params"`
	// Async marks actions that usually run long enough to be started rather than awaited.
	Async bool `json:"async" yaml:"async"`

	build func(Params) (process.Request, error)
}

// Runner executes invocations. *process.Executor, *process.Retrying and
// *docker.Runner satisfy it.
type Runner = provider.RequestResponse[process.Invocation, *process.Result]

// Catalog maps action names to tool invocations so the CLI and the HTTP API
// call tools the same way.
type Catalog struct {
	runner  Runner
	specs   map[string]process.Spec
	actions map[string]Action
	order   []string
	chained map[string]provider.RequestResponse[Params, *process.Result]

	log     *logger.Logger
	metrics *observability.Metrics
	service string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRunner sets what blocking calls run through, such as a
// process.Retrying. Defaults to the executor.
func WithRunner(r Runner) Option {
	return func(c *Catalog) { c.runner = r }
}

// WithSpec replaces the default policy of spec.Tool.
func WithSpec(spec process.Spec) Option {
	return func(c *Catalog) { c.specs[spec.Tool] = spec }
}

// WithLogger sets the logger of the action middleware.
func WithLogger(l *logger.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// WithMetrics records action call metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithServiceName sets the service name recorded on action spans.
func WithServiceName(name string) Option {
	return func(c *Catalog) { c.service = name }
}

// NewCatalog builds the catalog of nm and tshark actions on exec.
func NewCatalog(exec *process.Executor, opts ...Option) *Catalog {
	c := &Catalog{
		runner:  exec,
		specs:   map[string]process.Spec{nm.Tool: nm.DefaultSpec(), tshark.Tool: tshark.DefaultSpec()},
		actions: make(map[string]Action),
		chained: make(map[string]provider.RequestResponse[Params, *process.Result]),
		service: "kalikit",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get("tools")
	}

	for _, a := range builtinActions() {
		c.register(a)
	}
	return c
}

func (c *Catalog) register(a Action) {
	c.actions[a.Name] = a
	c.order = append(c.order, a.Name)

	spec := c.specs[a.Tool]
	rr := provider.Adapt(c.runner, a.Name,
		func(_ context.Context, p Params) (process.Invocation, error) {
			req, err := a.build(p)
			if err != nil {
				return process.Invocation{}, err
			}
			return process.Invocation{Spec: spec, Request: req}, nil
		},
		func(res *process.Result) (*process.Result, error) { return res, nil },
	)

	mws := []provider.Middleware[Params, *process.Result]{
		provider.WithTracing[Params, *process.Result](c.service),
	}
	if c.metrics != nil {
		mws = append(mws, provider.WithMetrics[Params, *process.Result](c.metrics))
	}
	mws = append(mws, provider.WithLogging[Params, *process.Result](c.log))
	c.chained[a.Name] = provider.Chain(mws...)(rr)
}

// List returns every action in registration order.
func (c *Catalog) List() []Action {
	out := make([]Action, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.actions[name])
	}
	return out
}

// Get returns the named action.
func (c *Catalog) Get(name string) (Action, bool) {
	a, ok := c.actions[name]
	return a, ok
}

// Spec returns the policy an action's tool runs under.
func (c *Catalog) Spec(tool string) (process.Spec, bool) {
	s, ok := c.specs[tool]
	return s, ok
}

// Run calls the named action and waits for it. Calls pass through tracing,
// metrics and logging middleware and then the configured Runner. On a tool
// failure the Result is returned along with the error, even though the
// middleware chain only carries the error.
func (c *Catalog) Run(ctx context.Context, name string, params Params) (*process.Result, error) {
	rr, ok := c.chained[name]
	if !ok {
		return nil, goerrors.NotFound("action", name)
	}
	return rr.Execute(ctx, params)
}

// Invoke starts the named action and returns at once. Parameter errors are
// returned before anything starts. The call goes through the same
// middleware and Runner as Run, and its Result carries the handle's id.
func (c *Catalog) Invoke(ctx context.Context, name string, params Params) (*process.Pending, error) {
	a, ok := c.actions[name]
	if !ok {
		return nil, goerrors.NotFound("action", name)
	}
	if _, err := a.build(params); err != nil {
		return nil, err
	}
	rr := c.chained[name]
	p := process.Go(ctx, a.Tool, func(ctx context.Context) (*process.Result, error) {
		return rr.Execute(ctx, params)
	})
	c.log.WithContext(ctx).Debug("action started", logger.Fields(
		logger.FieldAction, name,
		logger.FieldTool, a.Tool,
		logger.FieldInvocationID, p.ID(),
	))
	return p, nil
}

func builtinActions() []Action {
	target := []Param{{Name: "target", Description: "Path of the object file", Required: true}}
	file := []Param{{Name: "file", Description: "Path of the pcap file", Required: true}}

	nmDescriptions := map[nm.Mode]string{
		nm.ModeBasic:       "List symbols",
		nm.ModeDynamic:     "List dynamic symbols",
		nm.ModeDemangle:    "List symbols with C++ names demangled",
		nm.ModeNumericSort: "List symbols sorted by address",
		nm.ModeSizeSort:    "List symbols with their sizes",
		nm.ModeUndefined:   "List undefined symbols",
	}
	var actions []Action
	for _, mode := range nm.Modes() {
		actions = append(actions, Action{
			Name:        "nm." + string(mode),
			Tool:        nm.Tool,
			Description: nmDescriptions[mode],
			Params:      target,
			build: func(p Params) (process.Request, error) {
				return nm.Request(mode, p["target"])
			},
		})
	}

	fileAction := func(name, desc string, build func(string) (process.Request, error)) Action {
		return Action{
			Name: "tshark." + name, Tool: tshark.Tool, Description: desc, Params: file,
			build: func(p Params) (process.Request, error) { return build(p["file"]) },
		}
	}
	actions = append(actions,
		Action{
			Name:        "tshark.capture_live",
			Tool:        tshark.Tool,
			Description: "Capture live traffic from a network interface",
			Params: []Param{
				{Name: "interface", Description: "Interface to capture on", Required: true},
				{Name: "duration", Description: "Capture length in seconds", Default: strconv.Itoa(tshark.DefaultCaptureDuration)},
				{Name: "filter", Description: "Capture filter"},
			},
			Async: true,
			build: func(p Params) (process.Request, error) {
				duration, err := intParam(p, "duration")
				if err != nil {
					return process.Request{}, err
				}
				return tshark.CaptureLiveRequest(p["interface"], duration, p["filter"])
			},
		},
		Action{
			Name:        "tshark.analyze_pcap",
			Tool:        tshark.Tool,
			Description: "Decode a pcap file",
			Params:      append(slices.Clone(file), Param{Name: "display_filter", Description: "Display filter"}),
			build: func(p Params) (process.Request, error) {
				return tshark.AnalyzePcapRequest(p["file"], p["display_filter"])
			},
		},
		fileAction("extract_http", "Extract HTTP request methods and URIs", tshark.ExtractHTTPRequest),
		fileAction("protocol_hierarchy", "Show protocol hierarchy statistics", tshark.ProtocolHierarchyRequest),
		fileAction("conversation_statistics", "Show IP conversation statistics", tshark.ConversationStatisticsRequest),
		fileAction("expert_info", "Show expert information", tshark.ExpertInfoRequest),
	)
	return actions
}

func intParam(p Params, name string) (int, error) {
	s, ok := p[name]
	if !ok || s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, goerrors.InvalidInput(name, "must be an integer")
	}
	return n, nil
}
