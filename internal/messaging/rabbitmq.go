package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"yobot/internal/config"
	"yobot/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// HandoffPublisher publishes completed handoffs to a RabbitMQ exchange
// so CRMs and dashboards can follow up on leads.
type HandoffPublisher struct {
	exchange   string
	routingKey string
	connection *amqp.Connection
	channel    amqpChannel
	logger     *zap.Logger
}

// NewHandoffPublisher dials RabbitMQ and declares the exchange
func NewHandoffPublisher(cfg config.RabbitMQConfig, logger *zap.Logger) (*HandoffPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.RoutingKey == "" {
		return nil, errors.New("rabbitmq routing key is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if cfg.Exchange != "" {
		err = ch.ExchangeDeclare(
			cfg.Exchange,
			cfg.ExchangeType,
			true,  // durable
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %q: %w", cfg.Exchange, err)
		}
	}

	p := newHandoffPublisher(ch, cfg.Exchange, cfg.RoutingKey, logger)
	p.connection = conn
	p.logger.Info("connected to RabbitMQ",
		zap.String("exchange", cfg.Exchange),
		zap.String("routing_key", cfg.RoutingKey),
	)
	return p, nil
}

func newHandoffPublisher(ch amqpChannel, exchange, routingKey string, logger *zap.Logger) *HandoffPublisher {
	return &HandoffPublisher{
		exchange:   exchange,
		routingKey: routingKey,
		channel:    ch,
		logger:     logger.Named("rabbitmq"),
	}
}

// PublishHandoff sends the event as a persistent JSON message
func (p *HandoffPublisher) PublishHandoff(ctx context.Context, event model.HandoffEvent) error {
	if p.channel == nil || (p.connection != nil && p.connection.IsClosed()) {
		return errors.New("rabbitmq publisher is not connected")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff event %s: %w", event.EventID, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.EventID,
		Type:         "handoff.requested",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.channel.PublishWithContext(publishCtx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish handoff event %s: %w", event.EventID, err)
	}
	p.logger.Debug("handoff event published",
		zap.String("event_id", event.EventID),
		zap.Int64("property_id", event.PropertyID),
	)
	return nil
}

// Close closes the channel and the connection
func (p *HandoffPublisher) Close() error {
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
		p.channel = nil
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		p.connection = nil
	}
	return errors.Join(errs...)
}
