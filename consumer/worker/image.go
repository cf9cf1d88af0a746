package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-image-service/entity"
	"github.com/tnqbao/gau-image-service/infra"
	"github.com/tnqbao/gau-image-service/infra/produce"
	"github.com/tnqbao/gau-image-service/utils"
)

// Confirmer is satisfied by service.ConfirmationService.
type Confirmer interface {
	Confirm(ctx context.Context, id uuid.UUID) (*entity.Image, bool, error)
}

// ObjectCreatedEvent is the bucket notification body S3 and MinIO publish.
type ObjectCreatedEvent struct {
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDrop
	outcomeRequeue
)

type ImageConsumer struct {
	channel   *amqp.Channel
	logger    *infra.LoggerClient
	confirmer Confirmer
}

func NewImageConsumer(channel *amqp.Channel, logger *infra.LoggerClient, confirmer Confirmer) *ImageConsumer {
	return &ImageConsumer{
		channel:   channel,
		logger:    logger,
		confirmer: confirmer,
	}
}

func (c *ImageConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ImageUploadedQueue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register image uploaded consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Image Consumer] Started listening for upload events on queue: %s", produce.ImageUploadedQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Image Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Image Consumer] Channel closed")
					return
				}
				c.deliver(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *ImageConsumer) deliver(ctx context.Context, msg amqp.Delivery) {
	switch c.handle(ctx, msg.Body) {
	case outcomeAck:
		_ = msg.Ack(false)
	case outcomeRequeue:
		_ = msg.Nack(false, true)
	default:
		_ = msg.Nack(false, false)
	}
}

// handle confirms every image named by the event. A record that points
// outside the image prefix or at an unknown image is skipped; a
// persistence failure requeues the whole message, which is safe because
// confirmation is idempotent.
func (c *ImageConsumer) handle(ctx context.Context, body []byte) outcome {
	var event ObjectCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Image Consumer] Failed to unmarshal message")
		return outcomeDrop
	}
	if len(event.Records) == 0 {
		c.logger.WarningWithContextf(ctx, "[Image Consumer] Event has no records")
		return outcomeDrop
	}

	for _, record := range event.Records {
		if record.EventName != "" && !strings.HasPrefix(record.EventName, "ObjectCreated:") && !strings.HasPrefix(record.EventName, "s3:ObjectCreated:") {
			continue
		}

		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			c.logger.WarningWithContextf(ctx, "[Image Consumer] Undecodable object key %q", record.S3.Object.Key)
			continue
		}
		id, ok := entity.ImageIDFromStorageKey(key)
		if !ok {
			c.logger.DebugWithContextf(ctx, "[Image Consumer] Ignoring object %s", key)
			continue
		}

		if _, _, err := c.confirmer.Confirm(ctx, id); err != nil {
			switch utils.KindOf(err) {
			case utils.KindNotFound:
				c.logger.WarningWithContextf(ctx, "[Image Consumer] No image record for %s", key)
				continue
			case utils.KindPersistence, utils.KindCredential:
				c.logger.ErrorWithContextf(ctx, err, "[Image Consumer] Failed to confirm %s, requeueing", id)
				return outcomeRequeue
			default:
				c.logger.ErrorWithContextf(ctx, err, "[Image Consumer] Failed to confirm %s", id)
				return outcomeDrop
			}
		}
	}

	return outcomeAck
}
