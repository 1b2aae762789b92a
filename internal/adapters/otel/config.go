package otel

// Config holds OTEL exporter configuration. It is filled from MTRACK_OTEL_* by internal/config.
type Config struct {
	Endpoint string `envconfig:"ENDPOINT"`
	Enabled  bool   `envconfig:"ENABLED"`
	Insecure bool   `envconfig:"INSECURE"`
}
