package natsrelay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
	"git.home.luguber.info/inful/pkgrepo/internal/metrics"
	"git.home.luguber.info/inful/pkgrepo/internal/retry"
)

// Config holds connection settings.
type Config struct {
	URL      string
	Subject  string
	KVBucket string
	Timeout  time.Duration
	// Retry governs the initial dial. The zero value dials once.
	Retry retry.Policy
}

// StreamName derives the JetStream stream name from the subject prefix.
func StreamName(subject string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(subject))
}

// Connect dials NATS, ensures the event stream and KV bucket exist and
// returns a relay that owns the connection.
func Connect(ctx context.Context, cfg Config, session string, recorder metrics.Recorder) (*Relay, error) {
	if cfg.URL == "" || cfg.Subject == "" {
		return nil, ferrors.ConfigError("nats url and subject are required").Build()
	}

	var conn *nats.Conn
	err := cfg.Retry.Do(ctx, func(context.Context) error {
		c, derr := nats.Connect(cfg.URL, nats.Name("pkgrepo"))
		if derr != nil {
			return ferrors.WrapError(derr, ferrors.CategoryNetwork, "failed to connect to NATS").
				Retryable().
				WithContext("url", cfg.URL).
				Build()
		}
		conn = c
		return nil
	}, func(n int, delay time.Duration, err error) {
		slog.Warn("NATS connect failed, retrying",
			slog.String("url", cfg.URL),
			slog.Int("attempt", n),
			logfields.Duration(delay),
			logfields.Error(err))
	})
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stream := StreamName(cfg.Subject)
	if _, err := js.CreateOrUpdateStream(setupCtx, jetstream.StreamConfig{
		Name:        stream,
		Description: "pkgrepo registry notifications",
		Subjects:    []string{cfg.Subject + ".>"},
	}); err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to ensure event stream").
			WithContext("stream", stream).
			Build()
	}

	var kv jetstream.KeyValue
	if cfg.KVBucket != "" {
		kv, err = ensureBucket(setupCtx, js, cfg.KVBucket)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	r := New(js, nil, cfg.Subject, session, recorder)
	if kv != nil {
		r.kv = kv
	}
	if cfg.Timeout > 0 {
		r.timeout = cfg.Timeout
	}
	r.conn = conn

	slog.Info("NATS relay connected",
		slog.String("url", cfg.URL),
		logfields.Subject(cfg.Subject),
		slog.String("stream", stream),
		slog.String("kv_bucket", cfg.KVBucket))
	return r, nil
}

func ensureBucket(ctx context.Context, js jetstream.JetStream, bucket string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "pkgrepo registered packages by name",
		History:     1,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to create KV bucket").
			WithContext("bucket", bucket).
			Build()
	}
	slog.Info("Created KV bucket for package mirror", slog.String("bucket", bucket))
	return kv, nil
}
