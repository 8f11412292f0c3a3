package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
//
// Optional integrations follow the unconfigured-disables-it rule: an empty
// DatabaseURL selects the in-memory stores, an empty RedisURL disables the
// subscription match cache, an empty KafkaBrokers disables the delivery
// audit stream. No feature is reached through a nil global.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
}

// Delivery knobs.
var (
	// DeliveryTimeout bounds one webhook POST.
	DeliveryTimeout = 10 * time.Second
	// MaxDeliveryAttempts is the hard cap per delivery cycle.
	MaxDeliveryAttempts = 3
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("SIGNET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_DELIVERY_TOPIC")
	if topic == "" {
		topic = "signet.deliveries"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
	}
}
