package mqtingestor

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	config "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Config"
	logger "gitlab.com/maplesense1/mpt.telemetry_server/src/production/MQT.Logger"
)

// Listener maintains the long-lived broker subscription to the per-device
// data and status topic patterns. Reconnects use a fixed delay; messages in
// flight during a disconnect gap are lost, which the QoS 1 session accepts.
type Listener struct {
	cfg        *config.Config
	client     mqtt.Client
	dispatcher *Dispatcher
	logger     *logger.Logger
}

func NewListener(cfg *config.Config, dispatcher *Dispatcher, log *logger.Logger) *Listener {
	return &Listener{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     log.WithComponent("listener"),
	}
}

func (l *Listener) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(l.cfg.GetMQTTBrokerURL()).
		SetClientID(l.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(l.cfg.MQTT.KeepAlive).
		SetPingTimeout(l.cfg.MQTT.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(l.cfg.MQTT.RetryDelay).
		SetCleanSession(false)

	if l.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(l.cfg.MQTT.BrokerUser)
		opts.SetPassword(l.cfg.MQTT.BrokerPass)
	}

	if l.cfg.MQTT.UseTLS {
		tlsCfg, err := l.tlsConfig(l.cfg.MQTT.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		l.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		l.logger.Logger.Info().Str("data_topic", l.cfg.MQTT.DataTopic).Str("status_topic", l.cfg.MQTT.StatusTopic).Msg("MQTT connected, subscribing")
		if token := c.Subscribe(l.cfg.MQTT.DataTopic, 1, l.onData); token.Wait() && token.Error() != nil {
			l.logger.Logger.Error().Err(token.Error()).Str("topic", l.cfg.MQTT.DataTopic).Msg("Failed to subscribe")
		}
		if token := c.Subscribe(l.cfg.MQTT.StatusTopic, 1, l.onStatus); token.Wait() && token.Error() != nil {
			l.logger.Logger.Error().Err(token.Error()).Str("topic", l.cfg.MQTT.StatusTopic).Msg("Failed to subscribe")
		}
	}

	l.client = mqtt.NewClient(opts)
	if tk := l.client.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	return nil
}

func (l *Listener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(500)
	}
}

func (l *Listener) IsConnected() bool {
	return l.client != nil && l.client.IsConnected()
}

func (l *Listener) onData(_ mqtt.Client, m mqtt.Message) {
	l.dispatcher.Enqueue(sensorIDFromTopic(m.Topic()), m.Topic(), copyPayload(m.Payload()), false)
}

func (l *Listener) onStatus(_ mqtt.Client, m mqtt.Message) {
	l.dispatcher.Enqueue(sensorIDFromTopic(m.Topic()), m.Topic(), copyPayload(m.Payload()), true)
}

// sensorIDFromTopic extracts the device segment from sensors/<id>/<kind>.
// It is only a routing key for worker selection; the payload's sensor_id is
// what validation trusts.
func sensorIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return topic
}

// copyPayload detaches the message bytes from the client's receive buffer
func copyPayload(payload []byte) []byte {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return buf
}

func (l *Listener) tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
