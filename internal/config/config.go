// Package config decodes the on-disk server configuration (YAML, TOML,
// or JSON, auto-detected by spf13/viper from the file extension) into
// the shapes internal/server and cmd/sudoauditd need: listener
// endpoints, TLS material, relay targets, and logging destinations.
package config

import (
	"fmt"
	"time"

	libmap "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/mustafacco7/sudoauditd/pkg/certificates"
	certperm "github.com/mustafacco7/sudoauditd/pkg/certificates/certs"
	"github.com/mustafacco7/sudoauditd/pkg/duration"
	fileperm "github.com/mustafacco7/sudoauditd/pkg/file/perm"

	"github.com/mustafacco7/sudoauditd/internal/server"
)

// Endpoint is one on-disk listener entry, decoded before it is turned
// into a server.Endpoint (which additionally needs the resolved
// network family).
type Endpoint struct {
	Address   string `mapstructure:"address"`
	TLS       bool   `mapstructure:"tls"`
	Keepalive bool   `mapstructure:"keepalive"`
}

// File is the root of the on-disk configuration document.
type File struct {
	Listeners []Endpoint `mapstructure:"listeners"`

	TLS certificates.Config `mapstructure:"tls"`

	ServerTimeout    duration.Duration `mapstructure:"server_timeout"`
	HandshakeTimeout duration.Duration `mapstructure:"handshake_timeout"`
	ShutdownTimeout  duration.Duration `mapstructure:"shutdown_timeout"`
	AckFrequency     duration.Duration `mapstructure:"ack_frequency"`

	Relays      []string            `mapstructure:"relays"`
	RelayTLS    certificates.Config `mapstructure:"relay_tls"`
	StoreFirst  bool                `mapstructure:"store_first"`

	EventLogRoot  string        `mapstructure:"event_log_dir"`
	IOLogRoot     string        `mapstructure:"io_log_dir"`
	JournalRoot   string        `mapstructure:"journal_dir"`
	EventFileMode fileperm.Perm `mapstructure:"event_log_mode"`

	RandomDropProbability float64 `mapstructure:"random_drop_percentage"`

	DebugListenAddr string `mapstructure:"debug_listen_address"`

	PidFile string `mapstructure:"pid_file"`

	Log Log `mapstructure:"log"`
}

// Log configures the logging hooks; cmd/sudoauditd wires these onto a
// pkg/logger.Logger instance at startup.
type Log struct {
	Level    string `mapstructure:"level"`
	Stdout   bool   `mapstructure:"stdout"`
	Stderr   bool   `mapstructure:"stderr"`
	File     string `mapstructure:"file"`
	FileMode fileperm.Perm `mapstructure:"file_mode"`
	Syslog   string `mapstructure:"syslog"` // network:address, empty disables
	SyslogTag string `mapstructure:"syslog_tag"`
}

// Load reads path (any extension viper recognizes) and decodes it into
// a File, wiring the decode hooks the certificates, duration, and perm
// packages each expose for their own types.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server_timeout", "30s")
	v.SetDefault("handshake_timeout", "10s")
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("ack_frequency", "5s")
	v.SetDefault("event_log_mode", "0600")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	hook := libmap.ComposeDecodeHookFunc(
		fileperm.ViperDecoderHook(),
		certperm.ViperDecoderHook(),
		libmap.StringToTimeDurationHookFunc(),
		libmap.TextUnmarshallerHookFunc(),
	)

	if err := v.Unmarshal(&f, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	return &f, nil
}

// ToServerConfig builds the internal/server.Config the core needs,
// resolving each listener's network family and turning the TLS
// sections into *tls.Config via the certificates package.
func (f *File) ToServerConfig() (server.Config, error) {
	if err := f.TLS.Validate(); err != nil {
		return server.Config{}, fmt.Errorf("config: tls: %w", err)
	}

	var endpoints []server.Endpoint
	for _, l := range f.Listeners {
		endpoints = append(endpoints, server.Endpoint{
			Network:   networkFamily(l.Address),
			Address:   l.Address,
			TLS:       l.TLS,
			Keepalive: l.Keepalive,
		})
	}

	cfg := server.Config{
		Endpoints:             endpoints,
		ServerTimeout:         time.Duration(f.ServerTimeout),
		HandshakeTimeout:      time.Duration(f.HandshakeTimeout),
		ShutdownTimeout:       time.Duration(f.ShutdownTimeout),
		AckFrequency:          time.Duration(f.AckFrequency),
		RelayEndpoints:        f.Relays,
		StoreFirst:            f.StoreFirst,
		EventLogRoot:          f.EventLogRoot,
		IOLogRoot:             f.IOLogRoot,
		JournalRoot:           f.JournalRoot,
		EventFileMode:         f.EventFileMode,
		RandomDropProbability: f.RandomDropProbability / 100,
		DebugListenAddr:       f.DebugListenAddr,
	}

	if hasTLSMaterial(f.TLS) {
		cfg.TLSConfig = f.TLS.New().TLS("")
	}
	if hasTLSMaterial(f.RelayTLS) {
		cfg.RelayTLSConfig = f.RelayTLS.New().TLS("")
	}

	return cfg, nil
}

func hasTLSMaterial(c certificates.Config) bool {
	return len(c.Certs) > 0 || len(c.RootCA) > 0
}

// networkFamily guesses the listen network from the address literal: a
// bracketed or colon-heavy host is IPv6, otherwise tcp4, falling back
// to the unspecified "tcp" for bare ports like ":3000".
func networkFamily(address string) string {
	host, _, err := splitHostPort(address)
	if err != nil || host == "" {
		return "tcp"
	}
	if isIPv6Literal(host) {
		return "tcp6"
	}
	return "tcp4"
}
