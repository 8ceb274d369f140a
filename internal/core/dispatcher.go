package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher renders and delivers one consolidated message per recipient for
// a playlist cycle. Delivery failures are isolated per recipient: a bounced
// address never blocks the other recipients or the cycle itself.
type Dispatcher struct {
	transport   EmailTransport
	renderer    MessageRenderer
	concurrency int
	logger      *zap.Logger
}

func NewDispatcher(transport EmailTransport, renderer MessageRenderer, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		transport:   transport,
		renderer:    renderer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Dispatch delivers the cycle's events to a single recipient. Empty events
// are a no-op, not a failed send: no message is generated and the result
// reads as delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient Member, playlist *PlaylistDetails, events []AddedTrackEvent) DeliveryResult {
	if len(events) == 0 {
		return DeliveryResult{Member: recipient}
	}

	subject, body, err := d.renderer.Render(playlist, events)
	if err != nil {
		return DeliveryResult{Member: recipient, Err: fmt.Errorf("failed to render notification: %w", err)}
	}

	return d.send(ctx, recipient, subject, body)
}

// DispatchAll fans the cycle's events out to every resolved recipient,
// sending concurrently up to the configured limit. The message is rendered
// once and reused; exactly one message is generated per recipient. The
// returned results are ordered like recipients.
func (d *Dispatcher) DispatchAll(ctx context.Context, recipients []Member, playlist *PlaylistDetails, events []AddedTrackEvent) []DeliveryResult {
	if len(events) == 0 || len(recipients) == 0 {
		return nil
	}

	subject, body, err := d.renderer.Render(playlist, events)
	if err != nil {
		// Rendering is recipient-independent: if it fails, it fails for all.
		results := make([]DeliveryResult, len(recipients))
		for i, recipient := range recipients {
			results[i] = DeliveryResult{Member: recipient, Err: fmt.Errorf("failed to render notification: %w", err)}
		}
		return results
	}

	results := make([]DeliveryResult, len(recipients))

	g := &errgroup.Group{}
	g.SetLimit(d.concurrency)
	for i, recipient := range recipients {
		g.Go(func() error {
			results[i] = d.send(ctx, recipient, subject, body)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) send(ctx context.Context, recipient Member, subject, body string) DeliveryResult {
	if err := d.transport.Send(ctx, recipient.Email, subject, body); err != nil {
		d.logger.Warn("Delivery failed",
			zap.String("recipient", recipient.Email),
			zap.String("subject", subject),
			zap.Error(err))
		return DeliveryResult{Member: recipient, Err: err}
	}

	d.logger.Info("Notification delivered",
		zap.String("recipient", recipient.Email),
		zap.String("subject", subject))
	return DeliveryResult{Member: recipient}
}
