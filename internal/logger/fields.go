package logger

import "log/slog"

// Standard field keys for structured logging across the Cape server.
// Use these keys consistently so log lines stay greppable and aggregable.
const (
	KeyOpcode     = "opcode"      // wire opcode of the request
	KeyResultCode = "result_code" // numeric result code returned to the client

	KeyPath = "path" // resolved or requested filesystem path
	KeySize = "size" // byte count for a stream/payload

	KeyClientAddr = "client_addr" // remote socket address
	KeyUsername   = "username"    // authenticated (or attempted) username
	KeySessionID  = "session_id"  // 32-bit session identifier
	KeyPermission = "permission"  // permission level involved in the decision

	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyWorker     = "worker"      // worker pool slot index
	KeyQueueDepth = "queue_depth" // worker pool queue depth at time of log
)

// Opcode returns a slog.Attr for the wire opcode.
func Opcode(op uint8) slog.Attr {
	return slog.Any(KeyOpcode, op)
}

// ResultCode returns a slog.Attr for the numeric result code.
func ResultCode(code uint8) slog.Attr {
	return slog.Any(KeyResultCode, code)
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Size returns a slog.Attr for a byte count.
func Size(n uint64) slog.Attr {
	return slog.Uint64(KeySize, n)
}

// ClientAddr returns a slog.Attr for the remote socket address.
func ClientAddr(addr string) slog.Attr {
	return slog.String(KeyClientAddr, addr)
}

// Username returns a slog.Attr for the username involved in a request.
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// SessionID returns a slog.Attr for a session identifier.
func SessionID(id uint32) slog.Attr {
	return slog.Any(KeySessionID, id)
}

// Permission returns a slog.Attr for a permission level.
func Permission(p int) slog.Attr {
	return slog.Int(KeyPermission, p)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Worker returns a slog.Attr for a worker pool slot index.
func Worker(n int) slog.Attr {
	return slog.Int(KeyWorker, n)
}

// QueueDepth returns a slog.Attr for the worker pool's queue depth.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}
