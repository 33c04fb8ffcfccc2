package clients

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"tally-claim/internal/config"
	"tally-claim/internal/events"
	"tally-claim/internal/metrics"
)

// NATSClient NATS client for claim outcome events
type NATSClient struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	subjectPrefix string
	logger        *logrus.Logger
}

// NewNATSClient Create NATS client
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	connectTimeout := 10 * time.Second
	if cfg.Timeout > 0 {
		connectTimeout = time.Duration(cfg.Timeout) * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("tally-claim"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(3),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("⚠️ [NATS] Disconnected")
			metrics.NATSConnectionStatus.Set(0)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("✅ [NATS] Reconnected")
			metrics.NATSConnectionStatus.Set(1)
		}),
	)
	if err != nil {
		metrics.NATSConnectionStatus.Set(0)
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	metrics.NATSConnectionStatus.Set(1)

	client := &NATSClient{
		conn:          conn,
		subjectPrefix: cfg.SubjectPrefix,
		logger:        logger,
	}

	if cfg.EnableJetStream {
		js, err := conn.JetStream()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		client.js = js
	}

	logger.WithFields(logrus.Fields{
		"url":       cfg.URL,
		"jetstream": cfg.EnableJetStream,
	}).Info("✅ [NATS] Client initialized")
	return client, nil
}

// PublishClaimOutcome publish claim outcome event
func (c *NATSClient) PublishClaimOutcome(event *events.ClaimOutcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode claim outcome event: %w", err)
	}

	subject := event.Subject(c.subjectPrefix)
	if c.js != nil {
		if _, err := c.js.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish claim outcome event: %w", err)
		}
	} else {
		if err := c.conn.Publish(subject, data); err != nil {
			return fmt.Errorf("failed to publish claim outcome event: %w", err)
		}
		// the process exits right after publishing
		if err := c.conn.Flush(); err != nil {
			return fmt.Errorf("failed to flush claim outcome event: %w", err)
		}
	}

	c.logger.WithField("subject", subject).Info("📤 [NATS] Published claim outcome")
	return nil
}

// Close connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
