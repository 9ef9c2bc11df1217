package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port        int    `envconfig:"PORT" default:"8000"`
	Environment string `envconfig:"ENV" default:"development"`

	// Classifier
	ModelPath       string `envconfig:"MODEL_PATH" default:"models/emosense_cnn.bin"`
	EmotionProvider string `envconfig:"EMOTION_PROVIDER" default:"local"`
	DeepFaceURL     string `envconfig:"DEEPFACE_URL" default:"http://localhost:5005"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Text generation
	OllamaURL         string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel       string        `envconfig:"OLLAMA_MODEL" default:"llama3.2"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`

	// Database (optional, enables the analysis audit store)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// MQTT (optional, enables analysis events)
	MQTTBroker   string `envconfig:"MQTT_BROKER"`
	MQTTClientID string `envconfig:"MQTT_CLIENT_ID" default:"emosense-api"`
	MQTTTopic    string `envconfig:"MQTT_TOPIC" default:"emosense/analysis"`
	MQTTUsername string `envconfig:"MQTT_USERNAME"`
	MQTTPassword string `envconfig:"MQTT_PASSWORD"`

	// Webhook (optional, signed analysis events over HTTP)
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// Rate limiting, requests per minute per client IP
	RateLimitMax int `envconfig:"RATE_LIMIT_MAX" default:"120"`

	// Offline training and evaluation
	CorpusDir           string  `envconfig:"CORPUS_DIR" default:"dataset"`
	TrainEpochs         int     `envconfig:"TRAIN_EPOCHS" default:"30"`
	TrainBatchSize      int     `envconfig:"TRAIN_BATCH_SIZE" default:"64"`
	TrainLearningRate   float64 `envconfig:"TRAIN_LEARNING_RATE" default:"0.0001"`
	TrainSeed           int64   `envconfig:"TRAIN_SEED" default:"42"`
	TrainWorkers        int     `envconfig:"TRAIN_WORKERS" default:"0"`
	ValidationPartition string  `envconfig:"VALIDATION_PARTITION" default:"test"`
}

// Load reads a .env file when present, then the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.EmotionProvider {
	case "local", "deepface", "rekognition", "mock":
	default:
		return fmt.Errorf("EMOTION_PROVIDER %q not supported (local, deepface, rekognition, mock)", c.EmotionProvider)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimitMax)
	}
	switch c.ValidationPartition {
	case "test", "val":
	default:
		return fmt.Errorf("VALIDATION_PARTITION %q not supported (test, val)", c.ValidationPartition)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasDatabase reports whether the audit store is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasWebhook reports whether analysis events are posted to WEBHOOK_URL
func (c *Config) HasWebhook() bool {
	return c.WebhookURL != ""
}

// HasMQTT reports whether analysis events are published
func (c *Config) HasMQTT() bool {
	return c.MQTTBroker != ""
}
