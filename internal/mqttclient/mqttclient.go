// internal/mqttclient/mqttclient.go
package mqttclient

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sua-org/cam-events/internal/config"
)

var log = logrus.WithField("component", "mqtt")

// Publisher is the part of the client the notification handlers need.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type Client struct {
	client mqtt.Client

	mu   sync.Mutex
	subs map[string]subscription
}

type subscription struct {
	qos     byte
	handler func(topic string, payload []byte)
}

// Will is published by the broker when the daemon disappears.
type Will struct {
	Topic   string
	Payload []byte
}

func NewClient(cfg config.MQTTConfig, will *Will) (*Client, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	c := &Client{subs: make(map[string]subscription)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	// clean session: subscriptions are gone after a reconnect
	opts.SetOnConnectHandler(c.resubscribe)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("connection to %s lost: %v", broker, err)
	})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if will != nil {
		opts.SetBinaryWill(will.Topic, will.Payload, 1, true)
	}

	cli := mqtt.NewClient(opts)
	c.client = cli
	token := cli.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	log.Infof("connected to %s as %s", broker, cfg.ClientID)
	return c, nil
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()
	return c.subscribe(c.client, topic, qos, handler)
}

func (c *Client) subscribe(cli mqtt.Client, topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := cli.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

func (c *Client) resubscribe(cli mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	for topic, s := range subs {
		if err := c.subscribe(cli, topic, s.qos, s.handler); err != nil {
			log.Errorf("resubscribe %s: %v", topic, err)
		}
	}
}

func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
