package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Publisher = (*RabbitMQPublisher)(nil)

type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) PublishAlert(ctx context.Context, msg AlertMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid alert message: %w", err)
	}

	return p.publish(ctx, p.topology().AlertQueue, amqp.Publishing{
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Priority:      PriorityValue(msg.Priority),
	}, msg)
}

func (p *RabbitMQPublisher) PublishResult(ctx context.Context, event ResultEvent) error {
	if event.DeliveryID == "" {
		return fmt.Errorf("result event requires a delivery id")
	}

	return p.publish(ctx, p.topology().ResultQueue, amqp.Publishing{
		MessageId:     event.DeliveryID,
		CorrelationId: event.CorrelationID,
		Type:          "dispatch.result",
	}, event)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, publishing amqp.Publishing, body any) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing.ContentType = "application/json"
	publishing.DeliveryMode = amqp.Persistent
	publishing.Timestamp = p.now().UTC()
	publishing.Body = payload

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

func (p *RabbitMQPublisher) topology() Topology {
	if p == nil || p.client == nil {
		return Topology{}.withDefaults()
	}
	return p.client.Topology()
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
