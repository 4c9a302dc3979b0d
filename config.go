package mqtt

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the client options.
type Config struct {
	Broker             string        `yaml:"broker" json:"broker"`
	ClientID           string        `yaml:"client_id" json:"client_id"`
	AllowEmptyClientID bool          `yaml:"allow_empty_client_id" json:"allow_empty_client_id"`
	Username           string        `yaml:"username" json:"username"`
	Password           string        `yaml:"password" json:"password"`
	KeepAlive          *uint16       `yaml:"keep_alive" json:"keep_alive"`
	CleanSession       *bool         `yaml:"clean_session" json:"clean_session"`
	MaxMessageSize     uint32        `yaml:"max_message_size" json:"max_message_size"`
	RetryInterval      time.Duration `yaml:"retry_interval" json:"retry_interval"`
	LogLevel           string        `yaml:"log_level" json:"log_level"`
	Will               *WillConfig   `yaml:"will" json:"will"`
	Proxy              *ProxyConfig  `yaml:"proxy" json:"proxy"`
}

// WillConfig is the file form of the will message.
type WillConfig struct {
	Topic   string `yaml:"topic" json:"topic"`
	Message string `yaml:"message" json:"message"`
	QoS     byte   `yaml:"qos" json:"qos"`
	Retain  bool   `yaml:"retain" json:"retain"`
}

// LoadConfig reads a JSON or YAML config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig parses JSON (when the document starts with '{') or YAML config data.
func ParseConfig(b []byte) (*Config, error) {
	c := new(Config)
	if len(b) == 0 {
		return c, nil
	}

	var err error
	if b[0] == '{' {
		err = json.Unmarshal(b, c)
	} else {
		err = yaml.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	if c.Will != nil && c.Will.QoS > QoS2 {
		return nil, ErrInvalidQoS
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return nil, fmt.Errorf("%w: unknown log level %q", ErrInvalidParameter, c.LogLevel)
		}
	}

	return c, nil
}

// Options converts the config to client options. Zero values keep the
// defaults, except for the pointer fields, which apply whenever they are set.
func (c *Config) Options() []Option {
	var opts []Option

	if c.ClientID != "" {
		opts = append(opts, WithClientID(c.ClientID))
	}
	if c.AllowEmptyClientID {
		opts = append(opts, WithAllowEmptyClientID(true))
	}
	switch {
	case c.Password != "":
		opts = append(opts, WithCredentials(c.Username, c.Password))
	case c.Username != "":
		opts = append(opts, WithUsername(c.Username))
	}
	if c.KeepAlive != nil {
		opts = append(opts, WithKeepAlive(*c.KeepAlive))
	}
	if c.CleanSession != nil {
		opts = append(opts, WithCleanSession(*c.CleanSession))
	}
	if c.MaxMessageSize > 0 {
		opts = append(opts, WithMaxMessageSize(c.MaxMessageSize))
	}
	if c.RetryInterval > 0 {
		opts = append(opts, WithRetryInterval(c.RetryInterval))
	}
	if c.Will != nil {
		opts = append(opts, WithWill(c.Will.Topic, []byte(c.Will.Message), c.Will.Retain, c.Will.QoS))
	}
	if c.Proxy != nil {
		opts = append(opts, WithProxy(*c.Proxy))
	}
	if c.LogLevel != "" {
		if level, err := ParseLogLevel(c.LogLevel); err == nil {
			opts = append(opts, WithLogger(NewLogrusLogger(nil, level)))
		}
	}

	return opts
}
