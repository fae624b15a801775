package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"go-watchdog/internal/alert"
	"go-watchdog/internal/models"
)

const sendTimeout = 30 * time.Second

// Publisher forwards events to a message bus.
type Publisher interface {
	Publish(name string, payload any) error
}

// Notifier delivers notifications by email to the watchdog owner and to
// every operator channel. Deliveries are independent of each other.
type Notifier struct {
	mailer   alert.Mailer
	channels []alert.Channel
	bus      Publisher
	logger   *log.Logger
}

func NewNotifier(mailer alert.Mailer, channels []alert.Channel, bus Publisher, logger *log.Logger) *Notifier {
	if mailer == nil {
		mailer = alert.DiscardMailer{}
	}
	return &Notifier{mailer: mailer, channels: channels, bus: bus, logger: logger}
}

// Dispatch sends every event and returns the number of failed deliveries.
// A failure never prevents the other deliveries.
func (n *Notifier) Dispatch(ctx context.Context, events []models.Notification) int {
	var failures atomic.Int32
	var g errgroup.Group

	for _, ev := range events {
		subject, body := alert.Compose(ev)

		g.Go(func() error {
			err := guard(func() error {
				sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
				defer cancel()
				return n.mailer.Send(sendCtx, ev.Recipient, subject, body)
			})()
			if err != nil {
				failures.Add(1)
				n.logger.Error("mail delivery failed", "watchdog", ev.Name, "recipient", ev.Recipient, "kind", ev.Kind, "err", err)
				return nil
			}
			n.logger.Info("mail sent", "watchdog", ev.Name, "recipient", ev.Recipient, "kind", ev.Kind)
			return nil
		})

		for _, ch := range n.channels {
			g.Go(func() error {
				err := guard(func() error {
					sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
					defer cancel()
					return ch.Send(sendCtx, subject, body)
				})()
				if err != nil {
					failures.Add(1)
					n.logger.Error("channel delivery failed", "channel", ch.Name(), "watchdog", ev.Name, "err", err)
				}
				return nil
			})
		}

		if n.bus != nil {
			if err := n.bus.Publish(string(ev.Kind), ev); err != nil {
				n.logger.Warn("event publish failed", "watchdog", ev.Name, "kind", ev.Kind, "err", err)
			}
		}
	}

	_ = g.Wait()
	return int(failures.Load())
}
