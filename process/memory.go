package process

import (
	"fmt"
	"strconv"
	"strings"
)

// Byte multiples used by memory limits.
const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
	TiB       = 1024 * GiB
)

// ParseMemory converts human-readable memory strings to bytes.
// Supported suffixes: k/ki (KiB), m/mi (MiB), g/gi (GiB), t/ti (TiB), with an
// optional trailing "b". Without suffix, the value is treated as bytes.
func ParseMemory(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("process: empty memory string")
	}
	if len(s) > 1 && strings.HasSuffix(s, "b") {
		s = strings.TrimSuffix(s, "b")
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		bytes  int64
	}{
		{"ti", TiB}, {"gi", GiB}, {"mi", MiB}, {"ki", KiB},
		{"t", TiB}, {"g", GiB}, {"m", MiB}, {"k", KiB},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.bytes
			s = strings.TrimSuffix(s, unit.suffix)
			break
		}
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("process: parse memory %q: %w", s, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("process: memory must be non-negative: %d", val)
	}
	if val > 0 && multiplier > 1 && val > (1<<63-1)/multiplier {
		return 0, fmt.Errorf("process: memory %q overflows", s)
	}
	return val * multiplier, nil
}

// FormatMemory converts bytes to a human-readable string. Values that are
// not whole multiples keep the larger unit and drop the remainder.
func FormatMemory(bytes int64) string {
	switch {
	case bytes >= TiB && bytes%TiB == 0:
		return fmt.Sprintf("%dt", bytes/TiB)
	case bytes >= GiB:
		return fmt.Sprintf("%dg", bytes/GiB)
	case bytes >= MiB:
		return fmt.Sprintf("%dm", bytes/MiB)
	case bytes >= KiB:
		return fmt.Sprintf("%dk", bytes/KiB)
	default:
		return fmt.Sprintf("%d", bytes)
	}
}
