package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ImageExchange = "image.exchange"

	// ImageUploadedQueue receives object-created notifications from storage.
	ImageUploadedQueue      = "image.uploaded"
	ImageUploadedRoutingKey = "image.uploaded"

	// ImageConfirmedQueue is fed once an image becomes visible in the gallery.
	ImageConfirmedQueue      = "image.confirmed"
	ImageConfirmedRoutingKey = "image.confirmed"
)

type ImageConfirmedMessage struct {
	ImageID      string    `json:"image_id"`
	OwnerSubject string    `json:"owner_subject"`
	StorageKey   string    `json:"storage_key"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
	Timestamp    int64     `json:"timestamp"`
}

type ImageService struct {
	channel *amqp.Channel
}

// InitImageService declares the image exchange and binds both queues to it.
func InitImageService(channel *amqp.Channel) (*ImageService, error) {
	err := channel.ExchangeDeclare(
		ImageExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare image exchange: %w", err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{ImageUploadedQueue, ImageUploadedRoutingKey},
		{ImageConfirmedQueue, ImageConfirmedRoutingKey},
	}
	for _, b := range bindings {
		_, err = channel.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to declare %s queue: %w", b.queue, err)
		}

		if err = channel.QueueBind(b.queue, b.routingKey, ImageExchange, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind %s queue: %w", b.queue, err)
		}
	}

	return &ImageService{channel: channel}, nil
}

func (s *ImageService) PublishImageConfirmed(ctx context.Context, msg ImageConfirmedMessage) error {
	msg.Timestamp = time.Now().Unix()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		ImageExchange,
		ImageConfirmedRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
