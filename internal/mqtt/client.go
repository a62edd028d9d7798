package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prite36/smartfarm-controller/internal/config"
	"github.com/prite36/smartfarm-controller/internal/models"
)

const publishTimeout = 5 * time.Second

// ReadingSink receives decoded sensor readings.
type ReadingSink interface {
	Update(r models.Reading)
}

// Client handles the MQTT connection: sensor readings in, status and
// alerts out.
type Client struct {
	client mqtt.Client
	prefix string
	sink   ReadingSink
}

// NewClient creates and configures a new MQTT Client.
func NewClient(cfg config.MQTTConfig, sink ReadingSink) (*Client, error) {
	c := &Client{prefix: cfg.TopicPrefix, sink: sink}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.OnConnect = c.connectHandler
	opts.OnConnectionLost = c.connectionLostHandler

	client := mqtt.NewClient(opts)
	// With connect retry on, the token only completes once the broker is up.
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("[mqtt] [WARN] Broker %s not reachable yet, connecting in background", cfg.Broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	c.client = client
	return c, nil
}

func (c *Client) SensorTopic() string { return c.prefix + "/sensors" }
func (c *Client) StatusTopic() string { return c.prefix + "/status" }
func (c *Client) AlertTopic() string  { return c.prefix + "/alerts" }

// connectHandler subscribes on every (re)connect, since the session is not
// persistent.
func (c *Client) connectHandler(client mqtt.Client) {
	log.Println("[mqtt] Connected to MQTT broker")
	if token := client.Subscribe(c.SensorTopic(), 1, c.messageHandler); token.Wait() && token.Error() != nil {
		log.Printf("[mqtt] [ERROR] Failed to subscribe to %s: %v", c.SensorTopic(), token.Error())
		return
	}
	log.Printf("[mqtt] Subscribed to %s", c.SensorTopic())
}

// connectionLostHandler is called when the connection is lost.
func (c *Client) connectionLostHandler(client mqtt.Client, err error) {
	log.Printf("[mqtt] [WARN] Connection to MQTT broker lost: %v", err)
}

func (c *Client) messageHandler(client mqtt.Client, msg mqtt.Message) {
	reading, err := DecodeReading(msg.Payload())
	if err != nil {
		log.Printf("[mqtt] [WARN] Dropping reading from %s: %v", msg.Topic(), err)
		return
	}
	c.sink.Update(reading)
}

// DecodeReading parses a JSON sensor reading such as
// {"temp":25.1,"hum":60,"soil_pct":42,"lux":1200}.
func DecodeReading(payload []byte) (models.Reading, error) {
	var raw struct {
		models.Reading
		Temperature *float64 `json:"temp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.Reading{}, fmt.Errorf("invalid reading payload: %w", err)
	}
	if raw.Temperature == nil {
		return models.Reading{}, fmt.Errorf("reading has no temperature")
	}

	reading := raw.Reading
	reading.Temperature = *raw.Temperature
	if err := reading.Validate(); err != nil {
		return models.Reading{}, err
	}
	return reading, nil
}

func (c *Client) publish(topic string, retained bool, payload []byte) error {
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("error publishing to topic %s: %w", topic, token.Error())
	}
	return nil
}

// PublishStatus publishes the snapshot as a retained message.
func (c *Client) PublishStatus(snap models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	return c.publish(c.StatusTopic(), true, payload)
}

// Notify publishes each alert on the alert topic.
func (c *Client) Notify(alerts []models.Alert) int {
	sent := 0
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			log.Printf("[mqtt] [ERROR] Failed to encode alert %s: %v", a.CaseCode, err)
			continue
		}
		if err := c.publish(c.AlertTopic(), false, payload); err != nil {
			log.Printf("[mqtt] [WARN] %v", err)
			continue
		}
		sent++
	}
	return sent
}

// RunStatusPublisher publishes the snapshot every interval until ctx ends.
func (c *Client) RunStatusPublisher(ctx context.Context, snapshot func() models.Snapshot, clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.PublishStatus(snapshot()); err != nil {
				log.Printf("[mqtt] [WARN] %v", err)
			}
		}
	}
}

// Close disconnects the MQTT client.
func (c *Client) Close() {
	// Also stops a connect retry still running in the background.
	if c.client != nil {
		c.client.Disconnect(250)
	}
}
