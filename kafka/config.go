package kafka

import (
	"fmt"
	"slices"
	"time"
)

var saslMechanisms = []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"}

// Config is the broker connection and producer setup of the kafka tracker
// sink. Durations decode from strings such as "10s".
type Config struct {
	Brokers []string `mapstructure:"brokers"`
	// Topic receives transitions. Messages are keyed by execution id.
	Topic string `mapstructure:"topic"`

	EnableTLS     bool   `mapstructure:"enable_tls"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	TLSCAFile     string `mapstructure:"tls_ca_file"`
	TLSCertFile   string `mapstructure:"tls_cert_file"`
	TLSKeyFile    string `mapstructure:"tls_key_file"`

	EnableSASL    bool   `mapstructure:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`

	Compression  string        `mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	Retries      int           `mapstructure:"retries"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequiredAcks is -1 (all in-sync replicas) or 1 (leader only).
	RequiredAcks int `mapstructure:"required_acks"`

	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
}

// ApplyDefaults fills zero fields. Brokers have no default. Transitions are
// sent one at a time with acks from all replicas.
func (c *Config) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = "pipeflow.transitions"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	if c.EnableSASL && c.SASLMechanism == "" {
		c.SASLMechanism = "PLAIN"
	}
	setDuration(&c.BatchTimeout, 10*time.Millisecond)
	setDuration(&c.WriteTimeout, 10*time.Second)
	setDuration(&c.DialTimeout, 10*time.Second)
	setDuration(&c.IdleTimeout, 30*time.Second)
	setDuration(&c.MetadataTTL, 6*time.Second)
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case len(c.Brokers) == 0:
		return fmt.Errorf("kafka brokers are required")
	case c.Topic == "":
		return fmt.Errorf("kafka topic is required")
	case c.Retries <= 0:
		return fmt.Errorf("kafka retries must be > 0")
	case c.RequiredAcks != -1 && c.RequiredAcks != 1:
		return fmt.Errorf("kafka required_acks must be -1 or 1, got %d", c.RequiredAcks)
	}
	if _, ok := codecs[c.Compression]; !ok {
		return fmt.Errorf("kafka compression %q is not one of none, gzip, snappy, lz4, zstd", c.Compression)
	}
	if !c.EnableSASL {
		return nil
	}
	if !slices.Contains(saslMechanisms, c.SASLMechanism) {
		return fmt.Errorf("unsupported SASL mechanism: %s", c.SASLMechanism)
	}
	if c.Username == "" {
		return fmt.Errorf("SASL username is required")
	}
	return nil
}
