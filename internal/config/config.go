// ABOUTME: YAML configuration for blockq players and servers
// ABOUTME: Layers a config file and BLOCKQ_* environment variables over defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/blockq/pkg/protocol"
	"github.com/Resonate-Protocol/blockq/pkg/stream"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "BLOCKQ"

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete configuration of both binaries
type Config struct {
	Player  PlayerConfig `yaml:"player"`
	Server  ServerConfig `yaml:"server"`
	LogFile string       `yaml:"log_file,omitempty"`
	Debug   bool         `yaml:"debug"`
}

// PlayerConfig configures the player
type PlayerConfig struct {
	// Server is host:port; empty means discover over mDNS
	Server      string        `yaml:"server,omitempty"`
	Name        string        `yaml:"name,omitempty"`
	Volume      int           `yaml:"volume"`
	Period      time.Duration `yaml:"period"`
	Buffer      Buffer        `yaml:"buffer"`
	Codecs      []string      `yaml:"codecs,omitempty"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
	Discovery   time.Duration `yaml:"discovery_timeout"`
}

// Buffer holds the queue thresholds in milliseconds. PrebufMs -1 selects
// the queue's default prebuffer level.
type Buffer struct {
	MaxLengthMs int `yaml:"max_length_ms"`
	TargetMs    int `yaml:"target_ms"`
	PrebufMs    int `yaml:"prebuf_ms"`
	MinReqMs    int `yaml:"min_req_ms"`
	MaxRewindMs int `yaml:"max_rewind_ms"`
}

// ServerConfig configures the server
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name,omitempty"`
	// Audio is a file to stream; empty plays a test tone
	Audio string `yaml:"audio,omitempty"`
	Loop  bool   `yaml:"loop"`
	MDNS  bool   `yaml:"mdns"`
}

// Attr converts b to the wire form sent in client/hello
func (b Buffer) Attr() protocol.BufferAttr {
	return protocol.BufferAttr{
		MaxLengthMs: b.MaxLengthMs,
		TargetMs:    b.TargetMs,
		PrebufMs:    b.PrebufMs,
		MinReqMs:    b.MinReqMs,
		MaxRewindMs: b.MaxRewindMs,
	}
}

// Formats returns the default player formats restricted to the configured
// codecs, in default preference order
func (p PlayerConfig) Formats() []protocol.AudioFormat {
	if len(p.Codecs) == 0 {
		return stream.DefaultFormats
	}
	var formats []protocol.AudioFormat
	for _, f := range stream.DefaultFormats {
		for _, codec := range p.Codecs {
			if strings.EqualFold(f.Codec, codec) {
				formats = append(formats, f)
				break
			}
		}
	}
	return formats
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	d := stream.DefaultBuffer
	return &Config{
		Player: PlayerConfig{
			Volume: 100,
			Period: stream.DefaultPeriod,
			Buffer: Buffer{
				MaxLengthMs: d.MaxLengthMs,
				TargetMs:    d.TargetMs,
				PrebufMs:    d.PrebufMs,
				MinReqMs:    d.MinReqMs,
				MaxRewindMs: d.MaxRewindMs,
			},
			Discovery: 10 * time.Second,
		},
		Server: ServerConfig{
			Port: stream.DefaultPort,
			Loop: true,
			MDNS: true,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies BLOCKQ_* environment variables
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"SERVER":       &c.Player.Server,
		"NAME":         &c.Player.Name,
		"METRICS_ADDR": &c.Player.MetricsAddr,
		"SERVER_NAME":  &c.Server.Name,
		"AUDIO":        &c.Server.Audio,
		"LOG_FILE":     &c.LogFile,
	}
	for key, dst := range strs {
		if val, ok := os.LookupEnv(EnvPrefix + "_" + key); ok {
			*dst = val
		}
	}

	ints := map[string]*int{
		"VOLUME":        &c.Player.Volume,
		"MAX_LENGTH_MS": &c.Player.Buffer.MaxLengthMs,
		"TARGET_MS":     &c.Player.Buffer.TargetMs,
		"PREBUF_MS":     &c.Player.Buffer.PrebufMs,
		"MIN_REQ_MS":    &c.Player.Buffer.MinReqMs,
		"MAX_REWIND_MS": &c.Player.Buffer.MaxRewindMs,
		"PORT":          &c.Server.Port,
	}
	for key, dst := range ints {
		val, ok := os.LookupEnv(EnvPrefix + "_" + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if val, ok := os.LookupEnv(EnvPrefix + "_CODECS"); ok {
		c.Player.Codecs = strings.Split(val, ",")
	}
	if val, ok := os.LookupEnv(EnvPrefix + "_DEBUG"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%s_DEBUG: %w", EnvPrefix, err)
		}
		c.Debug = b
	}
	return nil
}

// Validate checks that the configuration can build a player and a server
func (c *Config) Validate() error {
	p := c.Player
	switch {
	case p.Volume < 0 || p.Volume > 100:
		return fmt.Errorf("%w: volume %d out of range 0-100", ErrInvalidConfig, p.Volume)
	case p.Period <= 0:
		return fmt.Errorf("%w: period must be positive", ErrInvalidConfig)
	case p.Discovery <= 0:
		return fmt.Errorf("%w: discovery timeout must be positive", ErrInvalidConfig)
	case len(p.Codecs) > 0 && len(p.Formats()) == 0:
		return fmt.Errorf("%w: no supported codec in %v", ErrInvalidConfig, p.Codecs)
	}
	if err := p.Buffer.Validate(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	return nil
}

// Validate checks the thresholds are consistent with each other
func (b Buffer) Validate() error {
	switch {
	case b.MaxLengthMs <= 0:
		return fmt.Errorf("%w: max_length_ms must be positive", ErrInvalidConfig)
	case b.TargetMs <= 0 || b.TargetMs > b.MaxLengthMs:
		return fmt.Errorf("%w: target_ms %d must be within 1-%d", ErrInvalidConfig, b.TargetMs, b.MaxLengthMs)
	case b.PrebufMs < -1 || b.PrebufMs > b.TargetMs:
		return fmt.Errorf("%w: prebuf_ms %d must be -1 or within 0-%d", ErrInvalidConfig, b.PrebufMs, b.TargetMs)
	case b.MinReqMs < 0 || b.MinReqMs > b.TargetMs:
		return fmt.Errorf("%w: min_req_ms %d must be within 0-%d", ErrInvalidConfig, b.MinReqMs, b.TargetMs)
	case b.MaxRewindMs < 0:
		return fmt.Errorf("%w: max_rewind_ms must not be negative", ErrInvalidConfig)
	}
	return nil
}

// YAML renders the configuration as a config file
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
