package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Appender přidává přijatý payload do bounded cache.
type Appender interface {
	Append(ctx context.Context, topic, value string) error
}

// Notifier se zavolá po každé mutaci cache (fan-out snapshotu na dashboard).
type Notifier interface {
	Push(ctx context.Context)
}

// Client drží jedno dlouhožijící spojení na MQTT broker a odebírá celý
// podstrom namespace jediným wildcardem ("<namespace>/#"). Senzor přidaný
// přes CRUD tak začne téct do cache okamžitě, bez přesubscribování.
type Client struct {
	mqtt      mqtt.Client
	cache     Appender
	notifier  Notifier
	namespace string
	logger    *slog.Logger
}

func New(brokerURL, clientID, namespace string, cache Appender, notifier Notifier, logger *slog.Logger) *Client {
	c := &Client{
		cache:     cache,
		notifier:  notifier,
		namespace: namespace,
		logger:    logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	// Subscribe patří do OnConnect: tak se odběr obnoví po každém
	// reconnectu, ne jen při prvním připojení.
	opts.SetOnConnectHandler(func(mc mqtt.Client) {
		filter := namespace + "/#"
		if token := mc.Subscribe(filter, 0, c.handle); token.Wait() && token.Error() != nil {
			logger.Error("Subscribe selhal", "filter", filter, "error", token.Error())
			return
		}
		logger.Info("Poslouchám na topicu", "filter", filter)
	})

	opts.SetConnectionLostHandler(func(mc mqtt.Client, err error) {
		logger.Warn("Spojení s brokerem ztraceno, běží reconnect", "error", err)
	})

	c.mqtt = mqtt.NewClient(opts)
	return c
}

// Mqtt zpřístupní sdílené spojení ostatním komponentám (log writer, sysmon).
// V procesu existuje právě jeden klient, vlastněný tímto objektem.
func (c *Client) Mqtt() mqtt.Client {
	return c.mqtt
}

func (c *Client) Connect() error {
	if token := c.mqtt.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Disconnect počká až 250 ms na dokončení rozpracovaných operací.
func (c *Client) Disconnect() {
	c.mqtt.Disconnect(250)
}

func (c *Client) handle(_ mqtt.Client, msg mqtt.Message) {
	c.HandleMessage(msg.Topic(), msg.Payload())
}

// HandleMessage zpracuje jednu příchozí zprávu: surový payload uloží do
// cache a spustí push snapshotu. Chyba cache zprávu jen zahodí — smyčka
// příjmu nesmí nikdy spadnout kvůli jedné zprávě.
func (c *Client) HandleMessage(topic string, payload []byte) {
	if strings.HasPrefix(topic, c.namespace+"/status/") {
		// Stavové topicy (sysmon apod.) chytá wildcard taky,
		// ale data senzorů to nejsou.
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.cache.Append(ctx, topic, string(payload)); err != nil {
		c.logger.Warn("Zápis do cache selhal, zpráva zahozena", "topic", topic, "error", err)
		return
	}
	c.logger.Debug("Zpráva uložena do cache", "topic", topic)

	c.notifier.Push(ctx)
}
