package logger

import "log/slog"

// Standard field keys, kept consistent across handlers, the pipe engine and
// the supervisor so log lines can be grepped/aggregated by key.
const (
	KeyTraceID   = "trace_id"
	KeyHandle    = "handle"
	KeyShare     = "share"
	KeyOpnum     = "opnum"
	KeySessionID = "session_id"
	KeyUsername  = "username"
	KeyClientIP  = "client_ip"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyDuration  = "duration_ms"
	KeyPID       = "pid"
	KeySignal    = "signal"
)

func TraceID(id string) slog.Attr      { return slog.String(KeyTraceID, id) }
func Handle(h uint64) slog.Attr        { return slog.Uint64(KeyHandle, h) }
func Share(name string) slog.Attr      { return slog.String(KeyShare, name) }
func Opnum(n uint16) slog.Attr         { return slog.Any(KeyOpnum, n) }
func SessionID(id uint64) slog.Attr    { return slog.Uint64(KeySessionID, id) }
func Username(name string) slog.Attr   { return slog.String(KeyUsername, name) }
func ClientIP(addr string) slog.Attr   { return slog.String(KeyClientIP, addr) }
func Status(code int32) slog.Attr      { return slog.Int(KeyStatus, int(code)) }
func DurationMs(ms float64) slog.Attr  { return slog.Float64(KeyDuration, ms) }
func PID(pid int) slog.Attr            { return slog.Int(KeyPID, pid) }
func Signal(sig string) slog.Attr      { return slog.String(KeySignal, sig) }

// Err returns a zero Attr for a nil error so it is dropped by appendAttr.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
