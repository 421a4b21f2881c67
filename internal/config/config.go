// Package config provides functionality for managing configuration options
// for the server using command-line flags, a config file and environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"port" yaml:"port"`

	// Store selects the byte store: file, sqlite or postgres.
	Store string `json:"store" yaml:"store"`

	// StoragePath is the JSON file for the file store or the database file for sqlite.
	StoragePath string `json:"storage_path" yaml:"storage_path"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// TagPath is the tag image watched by the file reader. Empty disables the reader.
	TagPath string `json:"tag_path" yaml:"tag_path"`

	// TagCapacity is the capacity reported for the file reader's tag, in bytes.
	TagCapacity int `json:"tag_capacity" yaml:"tag_capacity"`

	// SessionTimeout bounds one reader exchange, in seconds.
	SessionTimeout int `json:"session_timeout" yaml:"session_timeout"`

	// MQTTBroker is the broker URL for the restriction agent. Empty selects the log gateway.
	MQTTBroker   string `json:"mqtt_broker" yaml:"mqtt_broker"`
	MQTTTopic    string `json:"mqtt_topic" yaml:"mqtt_topic"`
	MQTTClientID string `json:"mqtt_client_id" yaml:"mqtt_client_id"`
	MQTTUsername string `json:"mqtt_username" yaml:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password" yaml:"mqtt_password"`

	// TLSCert and TLSKey enable HTTPS; ClientCA additionally requires client certificates.
	TLSCert  string `json:"tls_cert" yaml:"tls_cert"`
	TLSKey   string `json:"tls_key" yaml:"tls_key"`
	ClientCA string `json:"client_ca" yaml:"client_ca"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Config is the path to the config file (JSON, or YAML by extension).
	Config string `json:"-" yaml:"-"`
}

// Parse reads flags from the command line, then the config file, then the
// environment. Invalid configuration is fatal.
func Parse() *Options {
	opts, err := Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return opts
}

// Load builds Options from args and getenv. Config file values override
// flag defaults; environment variables override both.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs := flag.NewFlagSet("taglock", flag.ContinueOnError)
	fs.StringVar(&opts.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.Store, "s", StoreFile, "store: file | sqlite | postgres")
	fs.StringVar(&opts.StoragePath, "f", "taglock.json", "file store or sqlite database path")
	fs.StringVar(&opts.DatabaseDSN, "d", "", "postgres dsn")
	fs.StringVar(&opts.TagPath, "t", "", "tag image path watched by the reader")
	fs.IntVar(&opts.TagCapacity, "tag-capacity", 504, "tag capacity in bytes")
	fs.IntVar(&opts.SessionTimeout, "session-timeout", 60, "reader session timeout in seconds")
	fs.StringVar(&opts.MQTTBroker, "mqtt", "", "mqtt broker url, e.g. tcp://localhost:1883")
	fs.StringVar(&opts.MQTTTopic, "mqtt-topic", "taglock/restrictions/command", "mqtt command topic")
	fs.StringVar(&opts.MQTTClientID, "mqtt-client-id", "taglock", "mqtt client id")
	fs.StringVar(&opts.TLSCert, "tls-cert", "", "server certificate")
	fs.StringVar(&opts.TLSKey, "tls-key", "", "server key")
	fs.StringVar(&opts.ClientCA, "client-ca", "", "CA for client certificates")
	fs.StringVar(&opts.LogLevel, "l", "info", "log level")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}
	if err := opts.readFile(); err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"SERVER_ADDRESS":       &opts.Port,
		"DATABASE_DSN":         &opts.DatabaseDSN,
		"TAGLOCK_STORE":        &opts.Store,
		"TAGLOCK_STORAGE_PATH": &opts.StoragePath,
		"TAGLOCK_TAG_PATH":     &opts.TagPath,
		"TAGLOCK_MQTT_BROKER":  &opts.MQTTBroker,
		"TAGLOCK_MQTT_USER":    &opts.MQTTUsername,
		"TAGLOCK_MQTT_PASS":    &opts.MQTTPassword,
		"LOG_LEVEL":            &opts.LogLevel,
	}
	for env, field := range overrides {
		if v := getenv(env); v != "" {
			*field = v
		}
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// readFile merges the config file into opts. A missing file is not an error.
func (o *Options) readFile() error {
	if o.Config == "" {
		return nil
	}
	data, err := os.ReadFile(o.Config)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(o.Config)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, o)
	default:
		err = json.Unmarshal(data, o)
	}
	if err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

// Validate checks option combinations.
func (o *Options) Validate() error {
	var errs []error

	switch o.Store {
	case StoreFile, StoreSQLite:
		if o.StoragePath == "" {
			errs = append(errs, fmt.Errorf("store %s requires a storage path", o.Store))
		}
	case StorePostgres:
		if o.DatabaseDSN == "" {
			errs = append(errs, errors.New("store postgres requires a database dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", o.Store))
	}

	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls cert and key must be set together"))
	}
	if o.ClientCA != "" && o.TLSCert == "" {
		errs = append(errs, errors.New("client CA requires a tls cert and key"))
	}
	if o.TagCapacity <= 0 {
		errs = append(errs, errors.New("tag capacity must be positive"))
	}
	if o.SessionTimeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	if _, err := zapcore.ParseLevel(o.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}

	return errors.Join(errs...)
}
