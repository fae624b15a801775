package bus

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends watchdog events to NATS subjects under a common prefix.
type Publisher struct {
	Conn   *nats.Conn
	Prefix string
}

func NewPublisher(url, prefix string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("go-watchdog"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn, Prefix: prefix}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

// Subject joins the prefix and name, e.g. "watchdog.offline".
func (p *Publisher) Subject(name string) string {
	if p.Prefix == "" {
		return name
	}
	return p.Prefix + "." + name
}

func (p *Publisher) Publish(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(p.Subject(name), data)
}
