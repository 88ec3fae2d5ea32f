package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects pushed to live dashboard observers. Delivery is fire-and-forget:
// an observer that connects after an event was published never sees it.
const (
	SubjectOrderCreated = "mesna.order.created"
	SubjectPairingQR    = "mesna.pairing.qr"
	SubjectPairingState = "mesna.pairing.state"
	SubjectSettings     = "mesna.settings.updated"
)

// OrderAlert is the dashboard payload for a freshly extracted order.
type OrderAlert struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Items      string `json:"items"`
	Total      string `json:"total"`
	Timestamp  string `json:"timestamp"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Close() {
	c.conn.Close()
}
