package produce

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Produce struct {
	ImageService *ImageService
}

func InitProduce(channel *amqp.Channel) (*Produce, error) {
	imageService, err := InitImageService(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image produce service: %w", err)
	}

	return &Produce{
		ImageService: imageService,
	}, nil
}
