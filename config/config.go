/*
Package config loads the doordb command's configuration file.

Configuration files are YAML, of this general form:

	endpoint: /tmp/doordb
	codec: cbor
	network: unix
	calltimeout: 2s
	heartbeat: 30s
	loglevel: info
	registry:
	  endpoints:
	  - 127.0.0.1:2379
	  prefix: /doordb/

Every key is optional. Missing keys keep the values of Default. Unknown keys
are an error.

Endpoint is the channel name to open. Without a registry it is the socket path;
with one it is the service name looked up in the registry.

Codec is "cbor" or "binary". The server must speak the same one.

CallTimeout bounds each call and Heartbeat sets the keepalive interval. Zero
disables either.
*/
package config

import (
	"os"
	"time"

	"doordb/codec"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultEndpoint = "/tmp/doordb"
	DefaultNetwork  = "unix"
)

type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	Codec       string        `yaml:"codec"`
	Network     string        `yaml:"network"`
	CallTimeout time.Duration `yaml:"calltimeout"`
	Heartbeat   time.Duration `yaml:"heartbeat"`
	LogLevel    string        `yaml:"loglevel"`
	Registry    Registry      `yaml:"registry"`
}

// Registry names the etcd cluster endpoints are resolved through.
// An empty Endpoints list means no registry.
type Registry struct {
	Endpoints []string `yaml:"endpoints"`
	Prefix    string   `yaml:"prefix"`
}

func Default() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Codec:    "cbor",
		Network:  DefaultNetwork,
		LogLevel: "warn",
	}
}

// Load reads and parses the named file.
func Load(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", name)
	}
	return cfg, nil
}

// Parse applies the YAML in data over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing YAML")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is empty")
	}
	if _, err := c.CodecType(); err != nil {
		return err
	}
	switch c.Network {
	case "unix", "tcp":
	default:
		return errors.Errorf("unsupported network %q", c.Network)
	}
	if c.CallTimeout < 0 {
		return errors.Errorf("negative calltimeout %v", c.CallTimeout)
	}
	if c.Heartbeat < 0 {
		return errors.Errorf("negative heartbeat %v", c.Heartbeat)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) CodecType() (codec.CodecType, error) {
	return codec.ParseCodecType(c.Codec)
}

func (c *Config) Level() (zapcore.Level, error) {
	l, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return l, errors.Wrap(err, "loglevel")
	}
	return l, nil
}
