package capeproto

// Limits bounds every variable-length field a decoder will accept,
// rejecting anything larger outright rather than allocating for it.
type Limits struct {
	MaxUsernameLen int
	MaxPasswordLen int
	MaxPathLen     int
	MaxStreamLen   uint64
}

// DefaultLimits allows usernames up to 20 bytes, passwords up to 32
// bytes, paths up to PATH_MAX, and a 1 GiB upload stream ceiling.
func DefaultLimits() Limits {
	return Limits{
		MaxUsernameLen: 20,
		MaxPasswordLen: 32,
		MaxPathLen:     4096,
		MaxStreamLen:   1 << 30,
	}
}
