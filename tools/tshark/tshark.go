// Package tshark captures and analyzes network traffic with tshark. Every
// operation starts asynchronously, since captures and large pcap files can
// run for minutes.
package tshark

import (
	"context"
	"strconv"
	"time"

	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/validation"
)

// Tool is the tshark binary name.
const Tool = "tshark"

// DefaultCaptureDuration is the live capture length in seconds when none is given.
const DefaultCaptureDuration = 30

// MaxCaptureDuration bounds live captures to one day.
const MaxCaptureDuration = 86400

const interfacePattern = `^[A-Za-z0-9_.:-]+$`

// DefaultSpec returns the policy tshark runs under: network on, 2 GiB, 300s.
func DefaultSpec() process.Spec {
	return process.MustSpec(Tool,
		process.WithNetwork(true),
		process.WithMemory("2g"),
		process.WithTimeout(300*time.Second),
	)
}

// CaptureLiveRequest builds tshark -i iface -a duration:N [-f filter].
// A duration of 0 uses DefaultCaptureDuration.
func CaptureLiveRequest(iface string, duration int, filter string) (process.Request, error) {
	if duration == 0 {
		duration = DefaultCaptureDuration
	}
	v := validation.New()
	v.Argument("interface", iface).Pattern("interface", iface, interfacePattern)
	v.Range("duration", duration, 1, MaxCaptureDuration)
	v.NoControl("filter", filter)
	if appErr := v.Validate(); appErr != nil {
		return process.Request{}, appErr
	}

	argv := []string{Tool, "-i", iface, "-a", "duration:" + strconv.Itoa(duration)}
	if filter != "" {
		argv = append(argv, "-f", filter)
	}
	return process.Args(argv...), nil
}

// AnalyzePcapRequest builds tshark -r file [-Y displayFilter].
func AnalyzePcapRequest(file, displayFilter string) (process.Request, error) {
	v := validation.New()
	v.Argument("file", file)
	v.NoControl("display_filter", displayFilter)
	if appErr := v.Validate(); appErr != nil {
		return process.Request{}, appErr
	}

	argv := []string{Tool, "-r", file}
	if displayFilter != "" {
		argv = append(argv, "-Y", displayFilter)
	}
	return process.Args(argv...), nil
}

// ExtractHTTPRequest builds the HTTP request method and URI extraction.
func ExtractHTTPRequest(file string) (process.Request, error) {
	return fileRequest(file, "-Y", "http", "-T", "fields", "-e", "http.request.method", "-e", "http.request.uri")
}

// ProtocolHierarchyRequest builds tshark -r file -q -z io,phs.
func ProtocolHierarchyRequest(file string) (process.Request, error) {
	return fileRequest(file, "-q", "-z", "io,phs")
}

// ConversationStatisticsRequest builds tshark -r file -q -z conv,ip.
func ConversationStatisticsRequest(file string) (process.Request, error) {
	return fileRequest(file, "-q", "-z", "conv,ip")
}

// ExpertInfoRequest builds tshark -r file -q -z expert.
func ExpertInfoRequest(file string) (process.Request, error) {
	return fileRequest(file, "-q", "-z", "expert")
}

func fileRequest(file string, args ...string) (process.Request, error) {
	if err := validation.New().Argument("file", file).Validate(); err != nil {
		return process.Request{}, err
	}
	return process.Args(append([]string{Tool, "-r", file}, args...)...), nil
}

// Client starts tshark runs. Each method validates its parameters, then
// returns a Pending handle without waiting for tshark.
type Client struct {
	spec process.Spec
	cmd  *process.Command
}

// Option configures a Client.
type Option func(*Client)

// WithSpec overrides the default policy.
func WithSpec(spec process.Spec) Option {
	return func(c *Client) { c.spec = spec }
}

// New creates a Client running on exec.
func New(exec *process.Executor, opts ...Option) *Client {
	c := &Client{spec: DefaultSpec()}
	for _, opt := range opts {
		opt(c)
	}
	c.cmd = exec.Command(c.spec)
	return c
}

// Spec returns the policy the client runs tshark under.
func (c *Client) Spec() process.Spec { return c.spec }

// CaptureLive captures traffic on iface for duration seconds, optionally
// with a capture filter.
func (c *Client) CaptureLive(ctx context.Context, iface string, duration int, filter string) (*process.Pending, error) {
	return c.start(ctx)(CaptureLiveRequest(iface, duration, filter))
}

// AnalyzePcap decodes a capture file, optionally with a display filter.
func (c *Client) AnalyzePcap(ctx context.Context, file, displayFilter string) (*process.Pending, error) {
	return c.start(ctx)(AnalyzePcapRequest(file, displayFilter))
}

// ExtractHTTP prints the method and URI of every HTTP request in file.
func (c *Client) ExtractHTTP(ctx context.Context, file string) (*process.Pending, error) {
	return c.start(ctx)(ExtractHTTPRequest(file))
}

// ProtocolHierarchy prints protocol hierarchy statistics for file.
func (c *Client) ProtocolHierarchy(ctx context.Context, file string) (*process.Pending, error) {
	return c.start(ctx)(ProtocolHierarchyRequest(file))
}

// ConversationStatistics prints IP conversation statistics for file.
func (c *Client) ConversationStatistics(ctx context.Context, file string) (*process.Pending, error) {
	return c.start(ctx)(ConversationStatisticsRequest(file))
}

// ExpertInfo prints the expert information (errors, warnings, notes) for file.
func (c *Client) ExpertInfo(ctx context.Context, file string) (*process.Pending, error) {
	return c.start(ctx)(ExpertInfoRequest(file))
}

func (c *Client) start(ctx context.Context) func(process.Request, error) (*process.Pending, error) {
	return func(req process.Request, err error) (*process.Pending, error) {
		if err != nil {
			return nil, err
		}
		return c.cmd.Start(ctx, req), nil
	}
}
