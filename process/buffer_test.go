package process_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/kbukum/kalikit/process"
)

func TestBoundedBuffer_KeepsPrefix(t *testing.T) {
	b := process.NewBoundedBuffer(8)
	for _, s := range []string{"abc", "defgh", "ijk"} {
		n, err := b.Write([]byte(s))
		if err != nil || n != len(s) {
			t.Fatalf("Write(%q) = %d, %v; writes past the limit must still succeed", s, n, err)
		}
	}
	if b.String() != "abcdefgh" {
		t.Errorf("expected prefix, got %q", b.String())
	}
	if !b.Truncated() || b.Total() != 11 || b.Len() != 8 {
		t.Errorf("truncated=%v total=%d len=%d", b.Truncated(), b.Total(), b.Len())
	}
}

func TestBoundedBuffer_UnderLimit(t *testing.T) {
	b := process.NewBoundedBuffer(0)
	_, _ = b.Write([]byte("hello"))
	if b.Truncated() || string(b.Bytes()) != "hello" {
		t.Errorf("unexpected state: %q truncated=%v", b.Bytes(), b.Truncated())
	}
}

func TestBoundedBuffer_ConcurrentWrites(t *testing.T) {
	b := process.NewBoundedBuffer(1000)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = b.Write([]byte("xx"))
			}
		}()
	}
	wg.Wait()
	if b.Len() != 1000 || b.Total() != 1000 || b.Truncated() {
		t.Errorf("len=%d total=%d truncated=%v", b.Len(), b.Total(), b.Truncated())
	}
	if strings.Trim(b.String(), "x") != "" {
		t.Error("unexpected content")
	}
}
