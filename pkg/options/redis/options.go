// Package redis provides Redis connection configuration options.
package redis

import (
	"fmt"
	"os"
	"time"

	"github.com/kart-io/docchat/pkg/options"
	"github.com/spf13/pflag"
)

// redactedPassword is the placeholder used when serializing passwords.
const redactedPassword = "[REDACTED]"

// Options defines configuration options for Redis.
type Options struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	Password     string        `json:"-" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
}

// String returns a string representation with password redacted.
// Safe for logging and debugging.
func (o *Options) String() string {
	password := redactedPassword
	if o.Password == "" {
		password = ""
	}
	return fmt.Sprintf("Redis{host=%s, port=%d, password=%s, database=%d}",
		o.Host, o.Port, password, o.Database)
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		Host:        "127.0.0.1",
		Port:        6379,
		Database:    0,
		MaxRetries:  3,
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
	}
}

// Addr returns the host:port address for the Redis client.
func (o *Options) Addr() string {
	return fmt.Sprintf("%s:%d", o.Host, o.Port)
}

// AddFlags adds flags for Redis options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Host, options.Join(prefixes...)+"redis.host", o.Host, "Redis host.")
	fs.IntVar(&o.Port, options.Join(prefixes...)+"redis.port", o.Port, "Redis port.")
	fs.StringVar(&o.Password, options.Join(prefixes...)+"redis.password", o.Password, "Redis password (prefer REDIS_PASSWORD env var).")
	fs.IntVar(&o.Database, options.Join(prefixes...)+"redis.database", o.Database, "Redis database.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"redis.max-retries", o.MaxRetries, "Redis max retries.")
	fs.IntVar(&o.PoolSize, options.Join(prefixes...)+"redis.pool-size", o.PoolSize, "Redis pool size.")
	fs.IntVar(&o.MinIdleConns, options.Join(prefixes...)+"redis.min-idle-conns", o.MinIdleConns, "Redis min idle connections.")
	fs.DurationVar(&o.DialTimeout, options.Join(prefixes...)+"redis.dial-timeout", o.DialTimeout, "Redis dial timeout.")
}

// Validate validates the Redis options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, fmt.Errorf("redis host is required"))
	}
	if o.Port <= 0 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis port must be in (0, 65535]"))
	}
	return errs
}

// Complete completes the options, reading the password from the
// environment when it was not passed explicitly.
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("REDIS_PASSWORD")
	}
	return nil
}
