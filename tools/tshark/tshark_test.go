package tshark_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/process"
	"github.com/kbukum/kalikit/tools/tshark"
)

func TestDefaultSpec(t *testing.T) {
	spec := tshark.DefaultSpec()
	if !spec.Network || spec.MemoryLimit != 2*process.GiB || spec.Timeout != 300*time.Second {
		t.Errorf("unexpected spec %v", spec)
	}
}

func TestRequests(t *testing.T) {
	build := func(req process.Request, err error) string {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return strings.Join(req.Argv, " ")
	}

	tests := []struct {
		got, want string
	}{
		{build(tshark.CaptureLiveRequest("eth0", 0, "")), "tshark -i eth0 -a duration:30"},
		{build(tshark.CaptureLiveRequest("wlan0", 10, "port 80")), "tshark -i wlan0 -a duration:10 -f port 80"},
		{build(tshark.AnalyzePcapRequest("cap.pcap", "")), "tshark -r cap.pcap"},
		{build(tshark.AnalyzePcapRequest("cap.pcap", "http")), "tshark -r cap.pcap -Y http"},
		{build(tshark.ExtractHTTPRequest("cap.pcap")), "tshark -r cap.pcap -Y http -T fields -e http.request.method -e http.request.uri"},
		{build(tshark.ProtocolHierarchyRequest("cap.pcap")), "tshark -r cap.pcap -q -z io,phs"},
		{build(tshark.ConversationStatisticsRequest("cap.pcap")), "tshark -r cap.pcap -q -z conv,ip"},
		{build(tshark.ExpertInfoRequest("cap.pcap")), "tshark -r cap.pcap -q -z expert"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCaptureLive_FilterIsOneArgument(t *testing.T) {
	req, err := tshark.CaptureLiveRequest("eth0", 5, "port 80 and host 10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if last := req.Argv[len(req.Argv)-1]; last != "port 80 and host 10.0.0.1" {
		t.Errorf("filter was split: %q", req.Argv)
	}
}

func TestRequests_Reject(t *testing.T) {
	rejects := []func() (process.Request, error){
		func() (process.Request, error) { return tshark.CaptureLiveRequest("", 30, "") },
		func() (process.Request, error) { return tshark.CaptureLiveRequest("eth0; rm -rf /", 30, "") },
		func() (process.Request, error) { return tshark.CaptureLiveRequest("-w", 30, "") },
		func() (process.Request, error) { return tshark.CaptureLiveRequest("eth0", -1, "") },
		func() (process.Request, error) { return tshark.CaptureLiveRequest("eth0", 86401, "") },
		func() (process.Request, error) { return tshark.AnalyzePcapRequest("-r", "") },
		func() (process.Request, error) { return tshark.AnalyzePcapRequest("cap.pcap", "http\x00") },
		func() (process.Request, error) { return tshark.ExpertInfoRequest("") },
	}
	for i, fn := range rejects {
		_, err := fn()
		if appErr, ok := goerrors.AsAppError(err); !ok || appErr.HTTPStatus != 400 {
			t.Errorf("case %d: expected a 400 AppError, got %v", i, err)
		}
	}
}

func TestClient_StartsAsync(t *testing.T) {
	dir := t.TempDir()
	script := "#!/bin/sh\nsleep 0.2\nprintf '%s\\n' \"$*\"\n"
	if err := os.WriteFile(filepath.Join(dir, tshark.Tool), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	exec, err := process.New(process.Config{
		Isolation: process.IsolationConfig{Backend: process.BackendUnconfined, Enforcement: process.EnforcementPermissive},
	}, process.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	c := tshark.New(exec)

	p, err := c.ProtocolHierarchy(context.Background(), "cap.pcap")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, done, _ := p.Result(); done {
		t.Error("ProtocolHierarchy should not wait for tshark")
	}
	res, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "-r cap.pcap -q -z io,phs" {
		t.Errorf("unexpected argv %q", got)
	}

	if p, err := c.CaptureLive(context.Background(), "bad iface", 30, ""); err == nil || p != nil {
		t.Error("invalid parameters must fail before starting")
	}
}
