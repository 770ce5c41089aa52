// modbusmqtt polls every named register of one device on a fixed
// interval and publishes the values to an MQTT broker, one JSON message
// per register under <topic>/<device>/<register>.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tombolano/modbus-client/client"
	"github.com/tombolano/modbus-client/device"
)

type message struct {
	Device    string  `json:"device"`
	Register  string  `json:"register"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Timestamp string  `json:"timestamp"`
}

func main() {
	var (
		deviceFile = flag.String("device", "", "device description file (YAML)")
		tcpAddr    = flag.String("tcp", "", "Modbus TCP address (host:port)")
		rtuPort    = flag.String("rtu", "", "Modbus RTU serial device")
		baudRate   = flag.Int("baud", client.DefaultBaudRate, "RTU baud rate")
		timeout    = flag.Duration("timeout", 5*time.Second, "request timeout")
		broker     = flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
		clientID   = flag.String("client-id", "modbusmqtt", "MQTT client id")
		topicRoot  = flag.String("topic", "modbus", "MQTT topic root")
		interval   = flag.Duration("interval", 5*time.Second, "poll interval")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if *deviceFile == "" {
		fmt.Fprintln(os.Stderr, "usage: modbusmqtt -device <file> (-tcp addr | -rtu port) [-broker url] [-interval d]")
		os.Exit(2)
	}

	cfg, err := device.Load(*deviceFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("device description load failed")
	}

	var conn *client.Conn
	switch {
	case *tcpAddr != "":
		conn = client.NewTCP(client.TCPConfig{Address: *tcpAddr, Timeout: *timeout, Logger: logger})
	case *rtuPort != "":
		conn = client.NewRTU(client.RTUConfig{Device: *rtuPort, BaudRate: *baudRate, Timeout: *timeout, Logger: logger})
	default:
		logger.Fatal().Msg("one of -tcp or -rtu is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("connect failed")
	}
	defer conn.Close()

	opts := pahomqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID(*clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(*timeout)
	mq := pahomqtt.NewClient(opts)
	if tok := mq.Connect(); tok.Wait() && tok.Error() != nil {
		logger.Fatal().Err(tok.Error()).Str("broker", *broker).Msg("mqtt connect failed")
	}
	defer mq.Disconnect(250)

	dev := device.New(cfg, client.New(conn))

	logger.Info().
		Str("device", cfg.Name).
		Str("broker", *broker).
		Dur("interval", *interval).
		Msg("polling")

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case <-ticker.C:
			pollOnce(ctx, dev, mq, *topicRoot, logger)
		}
	}
}

// pollOnce runs one batched read and publishes every value. A failed
// poll publishes nothing: the next tick starts fresh.
func pollOnce(ctx context.Context, dev *device.Device, mq pahomqtt.Client, root string, logger zerolog.Logger) {
	values, err := dev.ReadAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("poll failed")
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for name, v := range values {
		reg, err := dev.Register(name)
		if err != nil {
			continue
		}
		payload, err := json.Marshal(message{
			Device:    dev.Config().Name,
			Register:  name,
			Value:     v,
			Unit:      reg.Unit,
			Timestamp: now,
		})
		if err != nil {
			continue
		}
		topic := root + "/" + dev.Config().Name + "/" + name
		if tok := mq.Publish(topic, 0, false, payload); tok.Wait() && tok.Error() != nil {
			logger.Error().Err(tok.Error()).Str("topic", topic).Msg("publish failed")
		}
	}
}
