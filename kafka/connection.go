package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// CreateTransport builds the kafka.Transport used by the transition producer.
func CreateTransport(cfg *Config) (*kafka.Transport, error) {
	tc, mech, err := cfg.security()
	if err != nil {
		return nil, err
	}
	return &kafka.Transport{
		IdleTimeout: cfg.IdleTimeout,
		MetadataTTL: cfg.MetadataTTL,
		TLS:         tc,
		SASL:        mech,
	}, nil
}

// CreateDialer builds the kafka.Dialer the component uses to probe brokers.
func CreateDialer(cfg *Config) (*kafka.Dialer, error) {
	tc, mech, err := cfg.security()
	if err != nil {
		return nil, err
	}
	return &kafka.Dialer{
		Timeout:       cfg.DialTimeout,
		DualStack:     true,
		TLS:           tc,
		SASLMechanism: mech,
	}, nil
}

// security resolves the optional TLS config and SASL mechanism. Either may be
// nil when the matching enable flag is off.
func (c *Config) security() (*tls.Config, sasl.Mechanism, error) {
	var (
		tc   *tls.Config
		mech sasl.Mechanism
		err  error
	)
	if c.EnableTLS {
		if tc, err = c.tlsConfig(); err != nil {
			return nil, nil, fmt.Errorf("kafka tls: %w", err)
		}
	}
	if c.EnableSASL {
		if mech, err = c.saslMechanism(); err != nil {
			return nil, nil, fmt.Errorf("kafka sasl: %w", err)
		}
	}
	return tc, mech, nil
}

func (c *Config) tlsConfig() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAFile != "" {
		pem, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("ca file: %w", err)
		}
		tc.RootCAs = x509.NewCertPool()
		if !tc.RootCAs.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca file %s holds no PEM certificates", c.TLSCAFile)
		}
	}
	if c.TLSCertFile == "" || c.TLSKeyFile == "" {
		return tc, nil
	}
	pair, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("client certificate: %w", err)
	}
	tc.Certificates = append(tc.Certificates, pair)
	return tc, nil
}

func (c *Config) saslMechanism() (sasl.Mechanism, error) {
	if c.SASLMechanism == "PLAIN" {
		return plain.Mechanism{Username: c.Username, Password: c.Password}, nil
	}
	algo, ok := scramAlgorithms[c.SASLMechanism]
	if !ok {
		return nil, fmt.Errorf("unsupported mechanism %q", c.SASLMechanism)
	}
	return scram.Mechanism(algo, c.Username, c.Password)
}

var scramAlgorithms = map[string]scram.Algorithm{
	"SCRAM-SHA-256": scram.SHA256,
	"SCRAM-SHA-512": scram.SHA512,
}

var codecs = map[string]kafka.Compression{
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

// ResolveCompression maps a codec name to kafka-go's constant. Unknown names
// fall back to snappy.
func ResolveCompression(name string) kafka.Compression {
	if c, ok := codecs[name]; ok {
		return c
	}
	return kafka.Snappy
}
