package meter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angas/gasquota/config"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const Source = "mqtt"

type ReadingRecorder interface {
	AddReading(ctx context.Context, source string, date dates.Date, meterM3 float64, note string) (database.ReadingRow, error)
}

// Subscriber stores every reading published on the configured topic.
type Subscriber struct {
	client   mqtt.Client
	logger   *slog.Logger
	topic    string
	recorder ReadingRecorder

	mu          sync.RWMutex
	lastMessage time.Time
}

func NewSubscriber(cnfg config.AppConfigMqtt, recorder ReadingRecorder) *Subscriber {
	logger := slog.Default().With("module", "meter")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID(cnfg.GetClientId())
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("meter MQTT connection lost", slog.Any("error", err))
	}

	mqttLog := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)

	s := &Subscriber{
		logger:   logger,
		topic:    cnfg.GetTopic(),
		recorder: recorder,
	}

	// Subscriptions are lost on reconnect unless the session is persistent
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("meter MQTT connected", slog.String("topic", s.topic))
		token := client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			s.HandleMessage(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			logger.Error("meter MQTT subscribe failed", slog.Any("error", token.Error()))
		}
	}

	s.client = mqtt.NewClient(opts)
	return s
}

func (s *Subscriber) Connect() error {
	s.logger.Debug("connecting meter MQTT client")
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to meter broker: %w", token.Error())
	}
	return nil
}

func (s *Subscriber) Disconnect() {
	s.logger.Info("disconnecting meter MQTT client")
	token := s.client.Unsubscribe(s.topic)
	token.WaitTimeout(1 * time.Second)
	if token.Error() != nil {
		s.logger.Error("error unsubscribing from topic", slog.Any("error", token.Error()))
	}
	s.client.Disconnect(250)
}

// HandleMessage records one reading, malformed payloads are logged and
// dropped.
func (s *Subscriber) HandleMessage(topic string, payload []byte) {
	s.mu.Lock()
	s.lastMessage = time.Now()
	s.mu.Unlock()

	msg, err := ParseReadingMessage(payload)
	if err != nil {
		s.logger.Error("error when reading meter message",
			slog.String("topic", topic),
			slog.String("payload", string(payload)),
			slog.Any("error", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.recorder.AddReading(ctx, Source, msg.Date, *msg.M3, msg.Note); err != nil {
		s.logger.Error("error when storing meter reading",
			slog.String("date", msg.Date.String()),
			slog.Float64("m3", *msg.M3),
			slog.Any("error", err))
	}
}

// LastMessage is when the last message arrived, zero if none has.
func (s *Subscriber) LastMessage() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessage
}
