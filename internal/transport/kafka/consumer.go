package kafka

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	generalDomain "github.com/sakib404-hub/zap-shit-server/pkg/domain"
	"github.com/sakib404-hub/zap-shit-server/pkg/kafka"
	"github.com/sakib404-hub/zap-shit-server/pkg/mylogger"
	"go.uber.org/zap"
)

type ParcelEventHandler interface {
	HandleParcelPaid(ctx context.Context, eventID int64, event generalDomain.ParcelPaidEvent) error
	HandleDeliveryStatusChanged(ctx context.Context, eventID int64, event generalDomain.DeliveryStatusChangedEvent) error
}

type Consumer struct {
	handler ParcelEventHandler
	logger  *zap.Logger
}

func NewConsumer(handler ParcelEventHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		handler: handler,
		logger:  logger,
	}
}

// Start blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, brokers []string, groupID, topic string) error {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		groupID,
		[]string{topic},
		c.processMessage,
		c.logger,
	)

	return consumerGroup.Run(ctx)
}

type eventWrapper struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	EventID int64           `json:"event_id"`
}

// processMessage returns an error only for failures worth redelivering.
// Malformed messages are logged and skipped.
func (c *Consumer) processMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	mylogger.Debug(
		ctx,
		c.logger,
		"Processing message",
		zap.String("topic", msg.Topic),
	)

	var wrapper eventWrapper
	if err := json.Unmarshal(msg.Value, &wrapper); err != nil {
		mylogger.Error(ctx, c.logger, "Error unmarshalling wrapper", zap.Error(err))
		return nil
	}

	if wrapper.EventID == 0 {
		mylogger.Warn(ctx, c.logger, "Message without event id", zap.String("event", wrapper.Event))
		return nil
	}

	switch wrapper.Event {
	case generalDomain.EventParcelPaid:
		var event generalDomain.ParcelPaidEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Error parsing ParcelPaid", zap.Error(err))
			return nil
		}

		if err := c.handler.HandleParcelPaid(ctx, wrapper.EventID, event); err != nil {
			mylogger.Error(ctx, c.logger, "Error processing ParcelPaid", zap.Int64("event_id", wrapper.EventID), zap.Error(err))
			return err
		}
	case generalDomain.EventDeliveryStatusChanged:
		var event generalDomain.DeliveryStatusChangedEvent
		if err := json.Unmarshal(wrapper.Payload, &event); err != nil {
			mylogger.Error(ctx, c.logger, "Error parsing DeliveryStatusChanged", zap.Error(err))
			return nil
		}

		if err := c.handler.HandleDeliveryStatusChanged(ctx, wrapper.EventID, event); err != nil {
			mylogger.Error(
				ctx,
				c.logger,
				"Error processing DeliveryStatusChanged",
				zap.Int64("event_id", wrapper.EventID),
				zap.Error(err),
			)
			return err
		}
	default:
		mylogger.Debug(ctx, c.logger, "Ignored event type", zap.String("event", wrapper.Event))
	}

	return nil
}
