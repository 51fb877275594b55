package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTP struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type Mongo struct {
	URI      string
	Database string
}

type Redis struct {
	Addr     string
	Password string
}

type Kafka struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

type Clerk struct {
	JWTPublicKey      string
	AuthorizedParties []string
	WebhookSecret     string
}

type Stripe struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type USPS struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
}

type Resend struct {
	APIKey      string
	FromAddress string
}

type Pricing struct {
	FreeShippingThreshold float64
	FlatShippingFee       float64
	TaxRate               float64
	WeightThresholdGrams  int
	WeightSurchargePerKg  float64
}

type Outbox struct {
	EventInterval   time.Duration
	CleanupInterval time.Duration
	BatchSize       int64
}

type Config struct {
	HTTP   HTTP
	Mongo  Mongo
	Redis  Redis
	Kafka  Kafka
	Clerk  Clerk
	Stripe Stripe
	USPS   USPS
	Resend Resend

	AdminAPIKey     string
	Pricing         Pricing
	PendingOrderTTL time.Duration
	Outbox          Outbox

	LogLevel       string
	TracingEnabled bool
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		HTTP: HTTP{
			Port:            getEnv("PORT", "8080"),
			RequestTimeout:  p.duration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: p.duration("HTTP_SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxBodyBytes:    int64(p.integer("HTTP_MAX_BODY_BYTES", 1<<20)),
		},
		Mongo: Mongo{
			URI:      getEnv("MONGODB_URI", ""),
			Database: getEnv("MONGODB_DB_NAME", "storefront"),
		},
		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: Kafka{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:         getEnv("KAFKA_ORDER_TOPIC", "order-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-notifier"),
		},
		Clerk: Clerk{
			JWTPublicKey:      strings.ReplaceAll(getEnv("CLERK_JWT_KEY", ""), `\n`, "\n"),
			AuthorizedParties: splitList(getEnv("CLERK_AUTHORIZED_PARTIES", "")),
			WebhookSecret:     getEnv("CLERK_WEBHOOK_SECRET", ""),
		},
		Stripe: Stripe{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		},
		USPS: USPS{
			BaseURL:      getEnv("USPS_BASE_URL", "https://apis.usps.com"),
			ClientID:     getEnv("USPS_CLIENT_ID", ""),
			ClientSecret: getEnv("USPS_CLIENT_SECRET", ""),
		},
		Resend: Resend{
			APIKey:      getEnv("RESEND_API_KEY", ""),
			FromAddress: getEnv("RESEND_FROM", "orders@example.com"),
		},
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		Pricing: Pricing{
			FreeShippingThreshold: p.float("FREE_SHIPPING_THRESHOLD", 50),
			FlatShippingFee:       p.float("FLAT_SHIPPING_FEE", 5.99),
			TaxRate:               p.float("TAX_RATE", 0.08),
			WeightThresholdGrams:  p.integer("WEIGHT_THRESHOLD_GRAMS", 5000),
			WeightSurchargePerKg:  p.float("WEIGHT_SURCHARGE_PER_KG", 1.50),
		},
		PendingOrderTTL: p.duration("PENDING_ORDER_TTL", 24*time.Hour),
		Outbox: Outbox{
			EventInterval:   p.duration("OUTBOX_EVENT_INTERVAL", 2*time.Second),
			CleanupInterval: p.duration("OUTBOX_CLEANUP_INTERVAL", 15*time.Minute),
			BatchSize:       int64(p.integer("OUTBOX_BATCH_SIZE", 100)),
		},
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		TracingEnabled: p.boolean("TRACING_ENABLED", false),
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// Validate reports every missing provider secret at once.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"MONGODB_URI", c.Mongo.URI},
		{"CLERK_JWT_KEY", c.Clerk.JWTPublicKey},
		{"CLERK_WEBHOOK_SECRET", c.Clerk.WebhookSecret},
		{"STRIPE_SECRET_KEY", c.Stripe.SecretKey},
		{"STRIPE_WEBHOOK_SECRET", c.Stripe.WebhookSecret},
		{"USPS_CLIENT_ID", c.USPS.ClientID},
		{"USPS_CLIENT_SECRET", c.USPS.ClientSecret},
		{"RESEND_API_KEY", c.Resend.APIKey},
		{"ADMIN_API_KEY", c.AdminAPIKey},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be in [0, 1), got %v", c.Pricing.TaxRate)
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS must list at least one broker")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects conversion errors so Load can report them together.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) integer(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
