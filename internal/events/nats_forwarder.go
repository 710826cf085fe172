package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// NATSForwarder republishes lifecycle events from the in-process Bus onto a
// NATS subject so external consumers (status dashboards, telemetry pipelines)
// can follow build progress without linking against this process.
//
// Forwarding is best-effort: a publish failure is logged and does not affect
// the build outcome.
type NATSForwarder struct {
	conn    *nats.Conn
	subject string
}

// NewNATSForwarder connects to the given NATS URL. Subject is the base
// subject; each event is published to "<subject>.<kind>".
func NewNATSForwarder(url, subject string) (*NATSForwarder, error) {
	if url == "" {
		return nil, ferrors.ValidationError("nats url is required").Build()
	}
	if subject == "" {
		subject = "docpipe.builds"
	}

	conn, err := nats.Connect(url, nats.Name("docpipe"))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "connect to nats").
			WithContext("url", url).
			Build()
	}

	slog.Info("NATS event forwarding enabled", "url", url, "subject", subject)
	return &NATSForwarder{conn: conn, subject: subject}, nil
}

// Run subscribes to all lifecycle events on the bus and forwards them until
// the context is canceled or the bus is closed.
func (f *NATSForwarder) Run(ctx context.Context, bus *Bus) error {
	if bus == nil {
		return ferrors.ValidationError("bus is required").Build()
	}

	ch, unsubscribe := Subscribe[LifecycleEvent](bus, 64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			f.forward(evt)
		}
	}
}

func (f *NATSForwarder) forward(evt LifecycleEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("Failed to marshal lifecycle event", "kind", evt.Kind(), "error", err)
		return
	}
	subj := f.subject + "." + evt.Kind()
	if err := f.conn.Publish(subj, data); err != nil {
		slog.Warn("Failed to forward lifecycle event", "subject", subj, "error", err)
	}
}

// Close drains and closes the NATS connection.
func (f *NATSForwarder) Close() {
	if f.conn != nil {
		if err := f.conn.Drain(); err != nil {
			f.conn.Close()
		}
	}
}
