package config

// FeedConfig describes the GTFS-RT TripUpdates endpoint
type FeedConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	APIKey      string `yaml:"apiKey"`
	InsecureTLS bool   `yaml:"insecureTLS"`
	UserAgent   string `yaml:"userAgent"`
}

// FilterConfig selects the single route and stop that are kept from the feed
type FilterConfig struct {
	Route string `yaml:"route" validate:"required"`
	Stop  string `yaml:"stop" validate:"required"`
}

// PollConfig contains the outer loop settings
type PollConfig struct {
	IntervalMS int `yaml:"intervalMS" validate:"gt=0"`
}

// LimitsConfig bounds every buffer and list used by one cycle
type LimitsConfig struct {
	PayloadCapBytes   int `yaml:"payloadCapBytes" validate:"gt=0"`
	ReadChunkBytes    int `yaml:"readChunkBytes" validate:"gte=16"`
	HeaderLineBytes   int `yaml:"headerLineBytes" validate:"gte=32"`
	MaxArrivals       int `yaml:"maxArrivals" validate:"gt=0"`
	FutureCount       int `yaml:"futureCount" validate:"gt=0"`
	PresentationCount int `yaml:"presentationCount" validate:"gt=0,ltefield=FutureCount"`
}

// TimeoutsConfig contains the per-phase deadlines in milliseconds
type TimeoutsConfig struct {
	ConnectMS int `yaml:"connectMS" validate:"gt=0"`
	WriteMS   int `yaml:"writeMS" validate:"gt=0"`
	HeaderMS  int `yaml:"headerMS" validate:"gt=0"`
	BodyMS    int `yaml:"bodyMS" validate:"gt=0"`
	IdleMS    int `yaml:"idleMS" validate:"gt=0,ltefield=BodyMS"`
}

// ServerConfig contains the optional health/metrics listener; port 0 disables it
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=0,lte=65535"`
}

// NATSConfig enables publishing boards to a NATS subject. Format selects the
// payload: the board JSON or a SIRI estimated timetable under Codespace.
type NATSConfig struct {
	URL       string `yaml:"url" validate:"omitempty,url"`
	Subject   string `yaml:"subject" validate:"required_with=URL"`
	Format    string `yaml:"format" validate:"omitempty,oneof=json siri"`
	Codespace string `yaml:"codespace"`
}

// DisplayConfig contains the heading lines printed above the console board
type DisplayConfig struct {
	Title []string `yaml:"title"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Feed     FeedConfig     `yaml:"feed" validate:"required"`
	Filter   FilterConfig   `yaml:"filter" validate:"required"`
	Poll     PollConfig     `yaml:"poll"`
	Limits   LimitsConfig   `yaml:"limits"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Server   ServerConfig   `yaml:"server"`
	NATS     NATSConfig     `yaml:"nats"`
	Display  DisplayConfig  `yaml:"display"`
	LogLevel string         `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}
