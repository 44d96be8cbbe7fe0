// Package mqtt publishes simulated sensor readings to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/models"
)

// DefaultTopic is the topic pattern readings are published to.
const DefaultTopic = "building/{building_id}/sensors"

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// Connect opens a paho client connection and waits up to cfg.Timeout for the CONNACK.
func Connect(cfg ClientConfig, logger *zap.Logger) (paho.Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// TokenPublisher is the subset of paho.Client the Publisher needs.
type TokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// ReadingMessage is the JSON payload for one reading.
type ReadingMessage struct {
	BuildingID        string  `json:"building_id"`
	Timestamp         string  `json:"timestamp"`
	Temperature       float64 `json:"temperature"`
	Humidity          float64 `json:"humidity"`
	Occupancy         int     `json:"occupancy"`
	EnergyConsumption float64 `json:"energy_consumption"`
}

// Publisher sends readings at QoS 1, not retained.
type Publisher struct {
	client     TokenPublisher
	topic      string
	buildingID string
	logger     *zap.Logger
}

func NewPublisher(client TokenPublisher, topicPattern, buildingID string, logger *zap.Logger) *Publisher {
	if topicPattern == "" {
		topicPattern = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:     client,
		topic:      FormatTopic(topicPattern, buildingID),
		buildingID: buildingID,
		logger:     logger,
	}
}

// Topic returns the resolved topic.
func (p *Publisher) Topic() string { return p.topic }

// NewReadingMessage converts a reading into its wire form.
func NewReadingMessage(buildingID string, r models.SensorReading) ReadingMessage {
	return ReadingMessage{
		BuildingID:        buildingID,
		Timestamp:         r.Timestamp.Format(models.TimestampLayout),
		Temperature:       r.Temperature,
		Humidity:          r.Humidity,
		Occupancy:         r.Occupancy,
		EnergyConsumption: r.EnergyConsumption,
	}
}

// Publish sends one reading and waits for the broker acknowledgement or ctx.
func (p *Publisher) Publish(ctx context.Context, r models.SensorReading) error {
	payload, err := json.Marshal(NewReadingMessage(p.buildingID, r))
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// PublishAll publishes readings in order and stops at the first failure.
// It returns how many were published.
func (p *Publisher) PublishAll(ctx context.Context, readings []models.SensorReading) (int, error) {
	for i, r := range readings {
		if err := p.Publish(ctx, r); err != nil {
			return i, err
		}
	}
	p.logger.Info("published readings", zap.String("topic", p.topic), zap.Int("count", len(readings)))
	return len(readings), nil
}

// FormatTopic replaces the {building_id} placeholder.
func FormatTopic(pattern, buildingID string) string {
	return strings.ReplaceAll(pattern, "{building_id}", buildingID)
}
