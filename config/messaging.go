package config

import (
	"github.com/spf13/viper"
)

// Messaging event-sink config struct
type Messaging struct {
	RabbitMQ *RabbitMQ
}

// RabbitMQ rabbitmq config struct
type RabbitMQ struct {
	URL      string
	Exchange string
}

// IsEnabled reports whether an external queue is configured.
func (m *Messaging) IsEnabled() bool {
	return m != nil && m.RabbitMQ != nil && m.RabbitMQ.URL != ""
}

func getMessagingConfig(v *viper.Viper) *Messaging {
	return &Messaging{
		RabbitMQ: &RabbitMQ{
			URL:      v.GetString("messaging.rabbitmq.url"),
			Exchange: getStringOrDefault(v, "messaging.rabbitmq.exchange", "authcore.security"),
		},
	}
}
