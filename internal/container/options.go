// Package container wires the engine's services into a samber/do injector.
// Each XxxPackage function registers the providers for one concern.
package container

import (
	"fmt"
	"time"
)

// Options configure the server. humacli exposes every field as a flag and as
// a SERVICE_* environment variable.
type Options struct {
	Port    int    `default:"8888" help:"Port to listen on"                                          short:"p"`
	BaseURL string `default:""     help:"Public base URL of short links (default http://localhost:<port>)"`

	LogFormat string `default:"console" help:"Log format: console or json"`
	LogLevel  string `default:"info"    help:"Log level: debug, info, warn or error"`

	TracingEnabled bool   `default:"false"           help:"Export traces over OTLP/gRPC"`
	OTLPEndpoint   string `default:"localhost:4317"  help:"OTLP/gRPC collector address"`
	ServiceName    string `default:"redirect-engine" help:"Service name reported on traces"`

	RedisAddr   string `default:"localhost:6379" help:"Redis server address"                       short:"r"`
	DatabaseURL string `default:""               help:"PostgreSQL connection URL"`
	Store       string `default:"redis"          help:"Mapping store: memory, redis or postgres"`

	CodeSource        string `default:"snowflake" help:"Code source: snowflake or keypool"`
	InstanceID        int    `default:"0"         help:"Snowflake instance id, unique per running server (0-1023)"`
	KeyPoolCodeLength int    `default:"7"         help:"Length of key pool codes"`

	CacheSize          int  `default:"100000" help:"Resolution cache entries per process"`
	CacheTTLSeconds    int  `default:"300"    help:"Resolution cache ttl in seconds"`
	NegativeTTLSeconds int  `default:"10"     help:"Cache ttl for unknown codes in seconds"`
	RemoteCache        bool `default:"true"   help:"Share resolutions between instances through Redis"`

	PermanentRedirect bool `default:"false" help:"Answer redirects with 301 instead of 302"`

	Events       bool `default:"true" help:"Publish created and accessed events to Redis streams"`
	ClickWorkers int  `default:"4"    help:"Click accounting workers"`
	ClickBuffer  int  `default:"4096" help:"Clicks buffered before new ones are dropped"`

	RateLimitStore   string `default:"redis" help:"Rate limit store: memory or redis"`
	GlobalPerMinute  int    `default:"600"   help:"Requests per minute per client, all endpoints"`
	ReadPerMinute    int    `default:"300"   help:"Stats reads per minute per client"`
	WritePerMinute   int    `default:"30"    help:"Writes per minute per client"`
	ResolvePerMinute int    `default:"300"   help:"Redirects per minute per client"`

	ConsumerGroup         string `default:"click-counter" help:"Redis streams consumer group"`
	HandlerTimeoutSeconds int    `default:"10"            help:"Per-event handler timeout for analytics consumers"`
}

// PublicBaseURL returns BaseURL or the local address derived from Port.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
