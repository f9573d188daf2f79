package kafka

import (
	"context"
	"encoding/json"
	"errors"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/domain/invoice"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	apperrors "github.com/apclear/invoicegate/pkg/errors"
)

// InvoiceHandler processes one received invoice.
type InvoiceHandler func(ctx context.Context, inv *invoice.Invoice) error

// Consumer reads invoice.received events and hands each invoice to the
// handler. Offsets commit after handling either way: the decision layer is
// idempotent on invoice id, so redelivery is safe, while an invoice that
// keeps failing must not wedge the partition.
type Consumer struct {
	reader  *kafkago.Reader
	handler InvoiceHandler
	logger  logging.Logger
}

// NewConsumer builds a group consumer on the invoices topic.
func NewConsumer(cfg config.KafkaConfig, handler InvoiceHandler, logger logging.Logger) *Consumer {
	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   TopicInvoicesReceived,
		}),
		handler: handler,
		logger:  logger.Named("kafka_consumer"),
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return apperrors.Wrap(err, apperrors.ErrCodeExternalService, "failed to fetch message")
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return apperrors.Wrap(err, apperrors.ErrCodeExternalService, "failed to commit offset")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) {
	inv, err := decodeInvoice(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable invoice event",
			logging.Int64("offset", msg.Offset), logging.Err(err))
		return
	}
	if err := c.handler(ctx, inv); err != nil {
		c.logger.Error("invoice processing failed",
			logging.String("invoice_id", string(inv.ID)), logging.Err(err))
	}
}

// Close shuts the reader down.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func decodeInvoice(raw []byte) (*invoice.Invoice, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "malformed event envelope")
	}
	if envelope.Type != EventTypeInvoiceReceived {
		return nil, apperrors.Newf(apperrors.ErrCodeSerialization, "unexpected event type %q", envelope.Type)
	}
	var payload InvoiceReceivedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "malformed invoice payload")
	}
	if payload.Invoice == nil {
		return nil, apperrors.New(apperrors.ErrCodeSerialization, "invoice payload is empty")
	}
	return payload.Invoice, nil
}
