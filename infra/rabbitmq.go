package infra

import (
	"fmt"
	"net/url"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-image-service/config"
)

type RabbitMQClient struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

// InitRabbitMQClient returns nil, nil when RABBITMQ_HOST is empty.
func InitRabbitMQClient(cfg *config.EnvConfig) (*RabbitMQClient, error) {
	if cfg.RabbitMQ.Host == "" {
		return nil, nil
	}

	uri := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.RabbitMQ.Username, cfg.RabbitMQ.Password),
		Host:   cfg.RabbitMQ.Host + ":" + cfg.RabbitMQ.Port,
		Path:   "/",
	}
	conn, err := amqp.DialConfig(uri.String(), amqp.Config{
		Dial:       amqp.DefaultDial(externalCallTimeout),
		Properties: amqp.Table{"connection_name": cfg.Grafana.ServiceName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s: %w", uri.Host, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQClient{
		Connection: conn,
		Channel:    channel,
	}, nil
}

func (r *RabbitMQClient) Close() error {
	if err := r.Channel.Close(); err != nil {
		_ = r.Connection.Close()
		return err
	}
	return r.Connection.Close()
}
