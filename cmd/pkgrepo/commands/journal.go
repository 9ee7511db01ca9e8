package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/pkgrepo/internal/config"
	"git.home.luguber.info/inful/pkgrepo/internal/eventstore"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// JournalCmd implements the 'journal' command.
type JournalCmd struct {
	Session string        `short:"s" help:"Session to show (defaults to the most recent)"`
	Since   time.Duration `help:"Only list events newer than this duration (e.g. 1h)"`
	DB      string        `name:"db" help:"Journal database path (overrides journal.path)"`
}

func (j *JournalCmd) Run(g *Global, root *CLI) error {
	// Inspecting the journal never touches the package directory.
	cfg, err := root.loadConfigWith(g, func(c *config.Config) {
		if c.Repository.Directory == "" {
			c.Repository.Directory = "."
		}
	})
	if err != nil {
		return err
	}
	path := cfg.Journal.Path
	if j.DB != "" {
		path = j.DB
	}

	st, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return ShowJournal(context.Background(), g.Stdout, st, j.Session, j.Since)
}

// ShowJournal prints the events of one session followed by its replayed
// registry. An empty session selects the most recent one.
func ShowJournal(ctx context.Context, w io.Writer, st eventstore.Store, session string, since time.Duration) error {
	if session == "" {
		sessions, err := st.Sessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return ferrors.NotFoundError("journal has no sessions").Build()
		}
		session = sessions[0].ID
	}

	events, err := sessionEvents(ctx, st, session, since)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "Session %s\n", session)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTIME\tTYPE\tSUBJECT")
	for _, ev := range events {
		subject := ""
		if decoded, ok, derr := eventstore.Decode(ev); derr == nil && ok {
			subject = decoded.Subject()
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.ID(), ev.Timestamp().Format(time.RFC3339), ev.Type(), subject)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	projection := eventstore.NewRegistryProjection(st, session)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "\nReplayed registry (%d events applied)\n", projection.Applied())
	return printReport(w, ScanReport{
		Repository: session,
		Directory:  "journal",
		Packages:   packageViews(projection.Packages()),
		Auxiliary:  projection.Auxiliary(),
	})
}

func sessionEvents(ctx context.Context, st eventstore.Store, session string, since time.Duration) ([]eventstore.Event, error) {
	if since <= 0 {
		events, err := st.GetBySession(ctx, session)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return nil, ferrors.NotFoundError("session not found").WithContext("session", session).Build()
		}
		return events, nil
	}

	now := time.Now()
	all, err := st.GetRange(ctx, now.Add(-since), now.Add(time.Second))
	if err != nil {
		return nil, err
	}
	events := all[:0]
	for _, ev := range all {
		if ev.SessionID() == session {
			events = append(events, ev)
		}
	}
	return events, nil
}
