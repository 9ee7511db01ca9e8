package store

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
)

// NewLogListener returns a listener that logs every notification at info
// level. It never fails.
func NewLogListener(logger *slog.Logger, repository string) *EventListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventListener{Handle: func(ctx context.Context, e Event) error {
		attrs := []slog.Attr{
			logfields.Repository(repository),
			logfields.Event(string(e.Kind)),
		}
		if e.Kind.IsPackage() {
			attrs = append(attrs,
				logfields.Package(e.Package.Name),
				logfields.Version(e.Package.VersionString()),
				logfields.Location(e.Package.Location),
			)
		} else {
			attrs = append(attrs, logfields.Location(e.Location))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Registry changed", attrs...)
		return nil
	}}
}
