// Package notify sends best-effort messages to sponsors and administrators.
// Sends happen after the state change they describe has committed; a failed
// send is logged and counted, never retried.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/giftlink/internal/metrics"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Gateway delivers a message to a destination address.
type Gateway interface {
	Send(ctx context.Context, destination string, msg Message) error
}

// LogGateway writes messages to the log instead of delivering them. It is used
// when no mail provider is configured.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With("component", "notify")}
}

func (g *LogGateway) Send(ctx context.Context, destination string, msg Message) error {
	g.logger.Info("notification (email not configured)",
		"to", destination,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

const defaultTimeout = 10 * time.Second

// Dispatcher runs sends in the background so callers never wait on the gateway.
type Dispatcher struct {
	gateway Gateway
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(gateway Gateway, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		gateway: gateway,
		logger:  logger.With("component", "notify"),
		metrics: m,
		timeout: defaultTimeout,
	}
}

// Dispatch sends msg to destination in a new goroutine.
func (d *Dispatcher) Dispatch(destination string, msg Message) {
	if destination == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.gateway.Send(ctx, destination, msg); err != nil {
			d.logger.Error("send notification", "to", destination, "subject", msg.Subject, "error", err)
			d.metrics.Notification("failed")
			return
		}
		d.metrics.Notification("sent")
	}()
}

// Wait blocks until every dispatched send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
