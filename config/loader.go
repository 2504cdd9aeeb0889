package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied to zero-valued settings before validation
const (
	DefaultPollIntervalMS    = 30000
	DefaultPayloadCapBytes   = 180 * 1024
	DefaultReadChunkBytes    = 2048
	DefaultHeaderLineBytes   = 192
	DefaultMaxArrivals       = 32
	DefaultFutureCount       = 10
	DefaultPresentationCount = 3
	DefaultConnectMS         = 20000
	DefaultWriteMS           = 10000
	DefaultHeaderMS          = 8000
	DefaultBodyMS            = 60000
	DefaultIdleMS            = 15000
	DefaultUserAgent         = "gtfsrt-arrivals/1.0"
)

// LoadAppConfig loads and validates the application configuration.
// An empty path falls back to config.yml in the working directory.
func LoadAppConfig(path string) (*AppConfig, error) {
	paths := []string{"config.yml", "./config/config.yml"}
	if path != "" {
		paths = []string{path}
	}
	var data []byte
	var err error
	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies defaults and validates the result
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero-valued tunable
func (c *AppConfig) ApplyDefaults() {
	setDefault(&c.Poll.IntervalMS, DefaultPollIntervalMS)
	setDefault(&c.Limits.PayloadCapBytes, DefaultPayloadCapBytes)
	setDefault(&c.Limits.ReadChunkBytes, DefaultReadChunkBytes)
	setDefault(&c.Limits.HeaderLineBytes, DefaultHeaderLineBytes)
	setDefault(&c.Limits.MaxArrivals, DefaultMaxArrivals)
	setDefault(&c.Limits.FutureCount, DefaultFutureCount)
	setDefault(&c.Limits.PresentationCount, DefaultPresentationCount)
	setDefault(&c.Timeouts.ConnectMS, DefaultConnectMS)
	setDefault(&c.Timeouts.WriteMS, DefaultWriteMS)
	setDefault(&c.Timeouts.HeaderMS, DefaultHeaderMS)
	setDefault(&c.Timeouts.BodyMS, DefaultBodyMS)
	setDefault(&c.Timeouts.IdleMS, DefaultIdleMS)
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = DefaultUserAgent
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.NATS.Format == "" {
		c.NATS.Format = "json"
	}
}

// Validate checks struct tags
func (c *AppConfig) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func setDefault(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// PollInterval returns the sleep between cycles
func (c *AppConfig) PollInterval() time.Duration { return ms(c.Poll.IntervalMS) }

// Connect returns the dial/handshake timeout
func (t TimeoutsConfig) Connect() time.Duration { return ms(t.ConnectMS) }

// Write returns the request write timeout
func (t TimeoutsConfig) Write() time.Duration { return ms(t.WriteMS) }

// Header returns the per-line deadline used while reading status and headers
func (t TimeoutsConfig) Header() time.Duration { return ms(t.HeaderMS) }

// Body returns the overall body download deadline
func (t TimeoutsConfig) Body() time.Duration { return ms(t.BodyMS) }

// Idle returns the no-progress deadline during the body download
func (t TimeoutsConfig) Idle() time.Duration { return ms(t.IdleMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
