package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRepository = "repository"
	KeyDirectory  = "directory"
	KeySession    = "session"
	KeyPackage    = "package"
	KeyVersion    = "version"
	KeyLocation   = "location"
	KeyPath       = "path"
	KeyEvent      = "event"
	KeyResult     = "result"
	KeyDurationMS = "duration_ms"
	KeyInterval   = "interval_ms"
	KeyCount      = "count"
	KeySubject    = "subject"
	KeyAddr       = "addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Repository(name string) slog.Attr { return slog.String(KeyRepository, name) }
func Directory(dir string) slog.Attr   { return slog.String(KeyDirectory, dir) }
func Session(id string) slog.Attr      { return slog.String(KeySession, id) }
func Package(name string) slog.Attr    { return slog.String(KeyPackage, name) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func Location(loc string) slog.Attr    { return slog.String(KeyLocation, loc) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Event(kind string) slog.Attr      { return slog.String(KeyEvent, kind) }
func Result(r string) slog.Attr        { return slog.String(KeyResult, r) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Subject(s string) slog.Attr       { return slog.String(KeySubject, s) }
func Addr(a string) slog.Attr          { return slog.String(KeyAddr, a) }

// Duration records d in fractional milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

// Interval records a poll interval in whole milliseconds.
func Interval(d time.Duration) slog.Attr {
	return slog.Int64(KeyInterval, d.Milliseconds())
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
