// Package bytesize parses the human-readable sizes Cape's configuration
// accepts for the wire protocol's upload stream ceiling, like "1Gi" or
// "512MB".
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes that unmarshals from strings like "1Gi",
// "500Mi", "100MB", or plain byte counts.
type ByteSize uint64

// Size constants. The i-suffixed units are binary (x1024), the rest are
// decimal (x1000).
const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

// ParseByteSize parses s as an integer count with an optional unit
// suffix: B, K/KB, M/MB, G/GB, T/TB, Ki/KiB, Mi/MiB, Gi/GiB, Ti/TiB
// (case-insensitive).
func ParseByteSize(s string) (ByteSize, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	split := len(trimmed)
	for split > 0 {
		c := trimmed[split-1]
		if c >= '0' && c <= '9' {
			break
		}
		split--
	}
	digits := trimmed[:split]
	suffix := strings.TrimSpace(trimmed[split:])

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	unit, err := unitMultiplier(suffix)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n) * unit, nil
}

func unitMultiplier(suffix string) (ByteSize, error) {
	switch strings.ToLower(suffix) {
	case "", "b":
		return B, nil
	case "k", "kb":
		return KB, nil
	case "m", "mb":
		return MB, nil
	case "g", "gb":
		return GB, nil
	case "t", "tb":
		return TB, nil
	case "ki", "kib":
		return KiB, nil
	case "mi", "mib":
		return MiB, nil
	case "gi", "gib":
		return GiB, nil
	case "ti", "tib":
		return TiB, nil
	default:
		return 0, fmt.Errorf("unknown unit %q", suffix)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so ByteSize fields
// decode directly from YAML and environment strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// String renders b with the largest binary unit that divides it evenly,
// falling back to a plain byte count.
func (b ByteSize) String() string {
	switch {
	case b >= TiB && b%TiB == 0:
		return fmt.Sprintf("%dTi", b/TiB)
	case b >= GiB && b%GiB == 0:
		return fmt.Sprintf("%dGi", b/GiB)
	case b >= MiB && b%MiB == 0:
		return fmt.Sprintf("%dMi", b/MiB)
	case b >= KiB && b%KiB == 0:
		return fmt.Sprintf("%dKi", b/KiB)
	default:
		return strconv.FormatUint(uint64(b), 10)
	}
}

// Uint64 returns b as a plain byte count.
func (b ByteSize) Uint64() uint64 {
	return uint64(b)
}
