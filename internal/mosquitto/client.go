package mosquitto

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Client struct {
	client mqtt.Client
	topics []string
	log    *slog.Logger
}

type Config struct {
	Broker   string
	ClientId string
	Username string
	Password string
	Topics   []string
}

const (
	broker_connection_limit = 60 // seconds to wait for the broker to come up
	subscribe_qos           = 1
	disconnect_quiesce_ms   = 250
)

// NewClient connects to the broker and subscribes handler to every topic.
// Subscriptions are renewed on each reconnect.
func NewClient(cfg Config, handler *MqttMsgHandler, log *slog.Logger) (*Client, error) {
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("no topics configured")
	}

	c := &Client{topics: cfg.Topics, log: log}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientId)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.subscribe(client, handler)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("broker connection lost", "err", err)
	})

	c.client = mqtt.NewClient(opts)

	token := c.client.Connect()
	isConnected := token.WaitTimeout(broker_connection_limit * time.Second)
	if !isConnected {
		return nil, fmt.Errorf("broker %s: connection timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker %s: %w", cfg.Broker, err)
	}

	return c, nil
}

func (c *Client) subscribe(client mqtt.Client, handler *MqttMsgHandler) {
	for _, topic := range c.topics {
		token := client.Subscribe(topic, subscribe_qos, func(_ mqtt.Client, msg mqtt.Message) {
			if err := handler.HandleMsg(msg.Payload()); err != nil {
				c.log.Warn("dropping MQTT message", "topic", msg.Topic(), "err", err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Error("subscribe failed", "topic", topic, "err", err)
			continue
		}
		c.log.Info("subscribed to topic", "topic", topic)
	}
}

// Run blocks until ctx is done, then disconnects.
func (c *Client) Run(ctx context.Context) error {
	<-ctx.Done()
	c.client.Disconnect(disconnect_quiesce_ms)
	c.log.Info("disconnected from broker")
	return nil
}
