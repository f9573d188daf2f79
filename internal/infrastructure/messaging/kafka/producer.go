package kafka

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/engine/workflow"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
)

// Producer publishes terminal decision events.
type Producer struct {
	writer *kafkago.Writer
	logger logging.Logger
}

// NewProducer builds a producer for the decisions topic.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        TopicDecisions,
			Balancer:     &kafkago.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			MaxAttempts:  cfg.MaxRetries,
			RequiredAcks: kafkago.RequireAll,
		},
		logger: logger.Named("kafka_producer"),
	}
}

// PublishDecision emits the terminal workflow state, keyed by invoice id.
func (p *Producer) PublishDecision(ctx context.Context, st workflow.State) error {
	envelope, err := NewDecisionEnvelope(st)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to frame decision event")
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode decision event")
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(st.InvoiceID),
		Value: raw,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to publish decision event")
	}

	p.logger.Debug("published decision event",
		logging.String("invoice_id", string(st.InvoiceID)),
		logging.String("type", envelope.Type))
	return nil
}

// Close flushes and shuts the writer down.
func (p *Producer) Close() error {
	return p.writer.Close()
}
