package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"studygroup-service/internal/models"
)

const originHeader = "x-origin"

// Relay fans group broadcasts out to every service instance. Each instance
// binds an exclusive queue to a fanout exchange and skips its own frames.
type Relay struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	queue    string
	origin   string
}

// NewRelay declares the fanout exchange and this instance's queue.
func NewRelay(amqpURL, exchange string) (*Relay, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open relay channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare relay exchange: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare relay queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind relay queue: %w", err)
	}

	return &Relay{conn: conn, ch: ch, exchange: exchange, queue: q.Name, origin: models.NewID()}, nil
}

// Publish forwards a locally broadcast message to the other instances.
func (r *Relay) Publish(ctx context.Context, event models.MessageEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Headers:     amqp.Table{originHeader: r.origin},
		Body:        body,
	})
}

// Consume delivers messages published by other instances to deliver until
// ctx is done or the channel closes.
func (r *Relay) Consume(ctx context.Context, deliver func(models.MessageEvent)) error {
	deliveries, err := r.ch.Consume(r.queue, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume relay queue: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if origin, _ := d.Headers[originHeader].(string); origin == r.origin {
				continue
			}
			var event models.MessageEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				log.Warn().Err(err).Msg("relay: dropping malformed frame")
				continue
			}
			deliver(event)
		}
	}
}

func (r *Relay) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
