package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/dataset"
	"github.com/kjstillabower/energy-forecast-service/internal/mqtt"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
	"github.com/kjstillabower/energy-forecast-service/internal/simulate"
)

func main() {
	defaults := simulate.DefaultParams()
	start := flag.String("start", defaults.Start.Format("2006-01-02"), "first day of the simulation (YYYY-MM-DD)")
	days := flag.Int("days", defaults.Days, "number of days to simulate")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	out := flag.String("out", "data/sensor_data.csv", "output CSV path")
	broker := flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty disables publishing)")
	topic := flag.String("mqtt-topic", mqtt.DefaultTopic, "MQTT topic pattern")
	buildingID := flag.String("building-id", "building-1", "building identifier substituted into the topic")
	clientID := flag.String("mqtt-client-id", "", "MQTT client ID (random when empty)")
	flag.Parse()

	logger, err := observability.NewLogger("simulate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	startDay, err := time.Parse("2006-01-02", *start)
	if err != nil {
		logger.Fatal("invalid -start", zap.Error(err))
	}
	if *days <= 0 {
		logger.Fatal("invalid -days", zap.Int("days", *days))
	}

	readings := simulate.Generate(simulate.Params{Start: startDay, Days: *days, Seed: *seed})
	if err := dataset.WriteFile(*out, readings); err != nil {
		logger.Fatal("write dataset", zap.Error(err), zap.String("path", *out))
	}
	logger.Info("dataset written", zap.String("path", *out), zap.Int("rows", len(readings)))
	fmt.Printf("Data saved to %s (%d rows)\n", *out, len(readings))

	if *broker == "" {
		return
	}
	if *clientID == "" {
		*clientID = "energy-simulator-" + uuid.NewString()[:8]
	}
	client, err := mqtt.Connect(mqtt.ClientConfig{
		Broker:   *broker,
		ClientID: *clientID,
		Username: os.Getenv("MQTT_USERNAME"),
		Password: os.Getenv("MQTT_PASSWORD"),
	}, logger)
	if err != nil {
		logger.Fatal("mqtt", zap.Error(err))
	}
	defer client.Disconnect(250)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publisher := mqtt.NewPublisher(client, *topic, *buildingID, logger)
	sent, err := publisher.PublishAll(ctx, readings)
	if err != nil {
		logger.Fatal("publish", zap.Error(err), zap.Int("sent", sent), zap.String("topic", publisher.Topic()))
	}
	logger.Info("readings published", zap.Int("sent", sent), zap.String("topic", publisher.Topic()))
}
