// Package telemetry fans accepted motion samples out to interested consumers.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"livemap/internal/geo"
	"livemap/internal/motion"
)

const DefaultExchange = "livemap_motion_fanout"

// Sample is the published motion message.
type Sample struct {
	Lat                 float64   `json:"lat"`
	Lon                 float64   `json:"lon"`
	Timestamp           time.Time `json:"timestamp"`
	SpeedMps            float64   `json:"speedMps"`
	AverageSpeedMps     float64   `json:"averageSpeedMps"`
	TotalDistanceMeters float64   `json:"totalDistanceMeters"`
}

func NewSample(p geo.Position, s motion.State) Sample {
	return Sample{
		Lat:                 p.Lat,
		Lon:                 p.Lon,
		Timestamp:           p.Timestamp,
		SpeedMps:            s.CurrentSpeedMps,
		AverageSpeedMps:     s.AverageSpeedMps,
		TotalDistanceMeters: s.TotalDistanceMeters,
	}
}

type Publisher interface {
	Publish(ctx context.Context, s Sample) error
	Close() error
}

// Nop drops every sample.
type Nop struct{}

func (Nop) Publish(context.Context, Sample) error { return nil }
func (Nop) Close() error                          { return nil }

// AMQPPublisher publishes samples to a durable fanout exchange.
type AMQPPublisher struct {
	logger   *slog.Logger
	exchange string

	mu   sync.Mutex
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func NewAMQPPublisher(dsn, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	p := &AMQPPublisher{logger: logger, exchange: exchange}
	if err := p.connect(dsn); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect(dsn string) error {
	conn, err := amqp091.Dial(dsn)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return errors.Join(conn.Close(), err)
	}
	err = ch.ExchangeDeclare(
		p.exchange, // name
		"fanout",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return errors.Join(conn.Close(), err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, s Sample) error {
	body, err := Encode(s)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		return errors.New("amqp channel closed")
	}
	return p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Transient,
		Timestamp:    s.Timestamp,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp091.ErrClosed) {
		return nil
	}
	return err
}

// Encode renders the wire form of a sample.
func Encode(s Sample) ([]byte, error) {
	return json.Marshal(s)
}

// New picks the AMQP publisher when dsn is set and Nop otherwise.
func New(dsn, exchange string, logger *slog.Logger) (Publisher, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	p, err := NewAMQPPublisher(dsn, exchange, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("publishing motion samples", "action", "telemetry", "exchange", p.exchange)
	return p, nil
}
