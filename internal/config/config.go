package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"

	"github.com/kursadbilgin/order-pipeline/internal/domain"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	PushGatewayURL string `env:"PUSH_GATEWAY_URL,required=true"`
	SMSGatewayURL  string `env:"SMS_GATEWAY_URL,required=true"`
	SMSAPIToken    string `env:"SMS_API_TOKEN"`

	SMTPHost string `env:"SMTP_HOST,required=true"`
	SMTPPort int    `env:"SMTP_PORT,default=587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM,required=true"`

	// KafkaBrokers is optional; empty disables stage change export.
	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=order-pipeline.stage-changes"`

	OverdueThresholdHours int `env:"OVERDUE_THRESHOLD_HOURS,default=48"`
	// StageThresholdOverrides holds per-stage hour overrides as
	// "STAGE=hours" pairs, e.g. "QUOTE_REQUESTED=24,ORDER_PROCESSING=96".
	StageThresholdOverrides string `env:"STAGE_THRESHOLD_OVERRIDES"`
	OverdueScanIntervalMin  int    `env:"OVERDUE_SCAN_INTERVAL_MIN,default=60"`

	QuietHoursStart              string `env:"QUIET_HOURS_START,default=22:00"`
	QuietHoursEnd                string `env:"QUIET_HOURS_END,default=08:00"`
	WeekdayMorningHour           int    `env:"WEEKDAY_MORNING_HOUR,default=8"`
	DigestHour                   int    `env:"DIGEST_HOUR,default=7"`
	DefaultUrgencyThresholdHours int    `env:"DEFAULT_URGENCY_THRESHOLD_HOURS,default=24"`

	DispatchScanIntervalSec int `env:"DISPATCH_SCAN_INTERVAL_SEC,default=30"`
	RetryScanIntervalSec    int `env:"RETRY_SCAN_INTERVAL_SEC,default=30"`
	MaxDeliveryAttempts     int `env:"MAX_DELIVERY_ATTEMPTS,default=5"`

	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=50"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.OverdueThresholdHours <= 0 {
		return fmt.Errorf("OVERDUE_THRESHOLD_HOURS must be positive, got %d", c.OverdueThresholdHours)
	}
	if c.WeekdayMorningHour < 0 || c.WeekdayMorningHour > 23 {
		return fmt.Errorf("WEEKDAY_MORNING_HOUR must be in [0,23], got %d", c.WeekdayMorningHour)
	}
	if c.DigestHour < 0 || c.DigestHour > 23 {
		return fmt.Errorf("DIGEST_HOUR must be in [0,23], got %d", c.DigestHour)
	}
	if _, err := domain.ParseTimeOfDay(c.QuietHoursStart); err != nil {
		return fmt.Errorf("invalid QUIET_HOURS_START: %w", err)
	}
	if _, err := domain.ParseTimeOfDay(c.QuietHoursEnd); err != nil {
		return fmt.Errorf("invalid QUIET_HOURS_END: %w", err)
	}
	if _, err := c.StageThresholds(); err != nil {
		return err
	}
	return nil
}

// StageThresholds resolves the per-stage overdue thresholds: the global
// default plus any per-stage overrides.
func (c *Config) StageThresholds() (map[domain.Stage]time.Duration, error) {
	thresholds := make(map[domain.Stage]time.Duration)
	defaultThreshold := time.Duration(c.OverdueThresholdHours) * time.Hour
	for _, stage := range domain.Stages() {
		thresholds[stage] = defaultThreshold
	}

	overrides := strings.TrimSpace(c.StageThresholdOverrides)
	if overrides == "" {
		return thresholds, nil
	}

	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid stage threshold override %q, want STAGE=hours", pair)
		}

		stage := domain.Stage(strings.TrimSpace(parts[0]))
		if !stage.IsValid() {
			return nil, fmt.Errorf("invalid stage in threshold override %q", pair)
		}

		hours, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("invalid hours in threshold override %q", pair)
		}

		thresholds[stage] = time.Duration(hours) * time.Hour
	}

	return thresholds, nil
}

// QuietDefaults resolves the default quiet window used when a user has no
// stored preference row.
func (c *Config) QuietDefaults() (domain.PreferenceDefaults, error) {
	start, err := domain.ParseTimeOfDay(c.QuietHoursStart)
	if err != nil {
		return domain.PreferenceDefaults{}, fmt.Errorf("invalid QUIET_HOURS_START: %w", err)
	}
	end, err := domain.ParseTimeOfDay(c.QuietHoursEnd)
	if err != nil {
		return domain.PreferenceDefaults{}, fmt.Errorf("invalid QUIET_HOURS_END: %w", err)
	}

	return domain.PreferenceDefaults{
		DeliveryMethod:        domain.MethodEmail,
		QuietStart:            start,
		QuietEnd:              end,
		UrgencyThresholdHours: c.DefaultUrgencyThresholdHours,
	}, nil
}

// KafkaBrokerList splits the comma-separated broker string; empty means
// export is disabled.
func (c *Config) KafkaBrokerList() []string {
	raw := strings.TrimSpace(c.KafkaBrokers)
	if raw == "" {
		return nil
	}

	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
