package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/LeonardoBeccarini/plantcare/pkg/rabbitmq"
)

const (
	ImageSourceScript = "script"
	ImageSourceDevice = "device"
)

// Config holds everything the dashboard and the simulator read from the
// environment.
type Config struct {
	Rabbit rabbitmq.RabbitMQConfig

	ImageSource        string // script | device
	ImageScriptURL     string
	CameraIP           string
	ImagePrefix        string
	ImageRefreshPeriod time.Duration
	CameraTimeout      time.Duration
	PlaceholderURL     string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	InferenceTimeout time.Duration

	BreakerFailures int
	BreakerOpenFor  time.Duration

	InfluxURL           string
	InfluxToken         string
	InfluxOrg           string
	InfluxBucket        string
	InfluxBatchSize     int
	InfluxFlushInterval time.Duration

	HTTPPort int
	GRPCPort int

	SimInterval time.Duration
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil {
		log.Println("config: no .env file found, relying on system environment variables")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Rabbit: rabbitmq.RabbitMQConfig{
			Host:       env("RABBITMQ_HOST", "localhost"),
			Port:       envInt("RABBITMQ_PORT", 1883),
			User:       env("RABBITMQ_USER", "guest"),
			Password:   env("RABBITMQ_PASSWORD", "guest"),
			ClientID:   env("MQTT_CLIENT_ID", env("HOSTNAME", "plantcare")),
			Root:       env("STORE_ROOT", "cactus"),
			MaxRetries: envInt("RABBITMQ_MAX_RETRIES", 5),
		},

		ImageSource:        strings.ToLower(env("IMAGE_SOURCE", ImageSourceScript)),
		ImageScriptURL:     env("IMAGE_SCRIPT_URL", ""),
		CameraIP:           env("CAMERA_IP", ""),
		ImagePrefix:        env("IMAGE_PREFIX", ""),
		ImageRefreshPeriod: envDuration("IMAGE_REFRESH_PERIOD", 30*time.Second),
		CameraTimeout:      envDuration("CAMERA_TIMEOUT", 5*time.Second),
		PlaceholderURL:     env("PLACEHOLDER_IMAGE_URL", ""),

		GeminiAPIKey:     env("GEMINI_API_KEY", ""),
		GeminiModel:      env("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:    env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		InferenceTimeout: envDuration("INFERENCE_TIMEOUT", 60*time.Second),

		BreakerFailures: envInt("CB_FAILS", 3),
		BreakerOpenFor:  envDuration("CB_OPEN_FOR", 30*time.Second),

		InfluxURL:           env("INFLUX_URL", ""),
		InfluxToken:         env("INFLUX_TOKEN", ""),
		InfluxOrg:           env("INFLUX_ORG", "plantcare"),
		InfluxBucket:        env("INFLUX_BUCKET", "events"),
		InfluxBatchSize:     envInt("WRITE_BATCH_SIZE", 10),
		InfluxFlushInterval: envDuration("WRITE_FLUSH_INTERVAL", 200*time.Millisecond),

		HTTPPort: envInt("HTTP_PORT", 8080),
		GRPCPort: envInt("GRPC_PORT", 50051),

		SimInterval: envDuration("SIM_INTERVAL", 5*time.Second),
	}
}

// Validate checks what `serve` needs.
func (c Config) Validate() error {
	var errs []error
	switch c.ImageSource {
	case ImageSourceScript:
		if c.ImageScriptURL == "" {
			errs = append(errs, errors.New("IMAGE_SCRIPT_URL is required when IMAGE_SOURCE=script"))
		}
	case ImageSourceDevice:
		if c.CameraIP == "" {
			errs = append(errs, errors.New("CAMERA_IP is required when IMAGE_SOURCE=device"))
		}
	default:
		errs = append(errs, fmt.Errorf("IMAGE_SOURCE must be %q or %q, got %q", ImageSourceScript, ImageSourceDevice, c.ImageSource))
	}
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.HTTPPort <= 0 || c.GRPCPort <= 0 {
		errs = append(errs, errors.New("HTTP_PORT and GRPC_PORT must be positive"))
	}
	return errors.Join(errs...)
}

// JournalEnabled reports whether an InfluxDB endpoint is configured.
func (c Config) JournalEnabled() bool { return c.InfluxURL != "" }

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// accepts "30s"/"1m" or a bare number of seconds
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
