package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitMQProviderName = "queue"

// RabbitMQ publishes notifications to an exchange for downstream
// delivery workers to fan out to the actual messaging channels.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// QueueMessage is the published payload. Kind distinguishes direct
// deliveries from conversational replies.
type QueueMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // "send" or "reply"
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (r *RabbitMQ) Name() string { return rabbitMQProviderName }

func (r *RabbitMQ) Send(ctx context.Context, address, message string) (Result, error) {
	id, err := r.publish(ctx, QueueMessage{
		ID:        uuid.NewString(),
		Kind:      "send",
		Address:   address,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return Result{Provider: rabbitMQProviderName, SentAt: time.Now().UTC()}, err
	}
	return Result{
		Success:    true,
		Provider:   rabbitMQProviderName,
		ProviderID: id,
		SentAt:     time.Now().UTC(),
	}, nil
}

func (r *RabbitMQ) Reply(ctx context.Context, replyToken, message string) error {
	_, err := r.publish(ctx, QueueMessage{
		ID:        uuid.NewString(),
		Kind:      "reply",
		Address:   replyToken,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	return err
}

func (r *RabbitMQ) publish(ctx context.Context, msg QueueMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    msg.ID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published notification", "message_id", msg.ID, "kind", msg.Kind)
	return msg.ID, nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
