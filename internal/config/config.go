package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"competition-service/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Questions   QuestionsConfig   `yaml:"questions"`
	Competition CompetitionConfig `yaml:"competition"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	CORS        CORSConfig        `yaml:"cors"`
}

type ServerConfig struct {
	Port             string `yaml:"port"`
	Mode             string `yaml:"mode"`
	ProgressInterval string `yaml:"progress_interval"`
	ShutdownTimeout  string `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	LockTTL  string `yaml:"lock_ttl"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type QuestionsConfig struct {
	File string `yaml:"file"`
	TTL  string `yaml:"ttl"`
}

// CompetitionConfig describes the single competition instance served by the process.
type CompetitionConfig struct {
	StartTime        string `yaml:"start_time"`
	EntranceDuration int    `yaml:"entrance_duration"`
	Length           int    `yaml:"length"`
	WarningThreshold int    `yaml:"warning_threshold"`
	// nil means true
	TrustClientWarningCount *bool `yaml:"trust_client_warning_count"`
	EnforceSubmitDeadline   bool  `yaml:"enforce_submit_deadline"`
}

type RateLimitConfig struct {
	MaxRequests int    `yaml:"max_requests"`
	Window      string `yaml:"window"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:             "8080",
			Mode:             "release",
			ProgressInterval: "5s",
			ShutdownTimeout:  "10s",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Auth:      AuthConfig{TokenTTL: "12h"},
		Redis:     RedisConfig{LockTTL: "10s"},
		Questions: QuestionsConfig{TTL: "5m"},
		Competition: CompetitionConfig{
			EntranceDuration: 900,
			Length:           3600,
			WarningThreshold: 3,
		},
		RateLimit: RateLimitConfig{MaxRequests: 100, Window: "1m"},
	}
}

// Load reads YAML config from path on top of Default and applies env overrides.
// An empty path yields defaults plus env.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("COMPETITION_START_TIME"); v != "" {
		c.Competition.StartTime = v
	}
	for name, dst := range map[string]*int{
		"COMPETITION_ENTRANCE_TIME": &c.Competition.EntranceDuration,
		"COMPETITION_LENGTH":        &c.Competition.Length,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	return nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Log),
		validation.Field(&c.Competition),
		validation.Field(&c.RateLimit),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required),
		validation.Field(&s.Mode, validation.In("debug", "release", "test")),
		validation.Field(&s.ProgressInterval, validation.By(isDuration)),
		validation.Field(&s.ShutdownTimeout, validation.By(isDuration)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
	)
}

func (c CompetitionConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.StartTime, validation.By(isRFC3339)),
		validation.Field(&c.EntranceDuration, validation.Required, validation.Min(1),
			validation.Max(c.Length).Error("must not exceed length")),
		validation.Field(&c.Length, validation.Required, validation.Min(1)),
		validation.Field(&c.WarningThreshold, validation.Min(1)),
	)
}

func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRequests, validation.Min(0)),
		validation.Field(&r.Window, validation.By(isDuration)),
	)
}

// Window builds the immutable competition window. A missing start time means
// the competition opens at processStart.
func (c Config) Window(processStart time.Time) (domain.Window, error) {
	start := processStart
	if c.Competition.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, c.Competition.StartTime)
		if err != nil {
			return domain.Window{}, fmt.Errorf("%w: start_time: %v", domain.ErrInvalidWindow, err)
		}
		start = parsed
	}
	w := domain.Window{
		Start:            start,
		EntranceDuration: time.Duration(c.Competition.EntranceDuration) * time.Second,
		Length:           time.Duration(c.Competition.Length) * time.Second,
	}
	if err := w.Validate(); err != nil {
		return domain.Window{}, err
	}
	return w, nil
}

// TrustClientCount reports the configured warning-count policy, defaulting to true.
func (c CompetitionConfig) TrustClientCount() bool {
	return c.TrustClientWarningCount == nil || *c.TrustClientWarningCount
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func isDuration(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := time.ParseDuration(raw); err != nil {
		return fmt.Errorf("must be a duration such as 30s or 5m")
	}
	return nil
}

func isRFC3339(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, raw); err != nil {
		return fmt.Errorf("must be an RFC3339 timestamp")
	}
	return nil
}
