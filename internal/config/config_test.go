package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load([]string{"-c", filepath.Join(t.TempDir(), "missing.json")}, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", opts.Port)
	assert.Equal(t, StoreFile, opts.Store)
	assert.Equal(t, "taglock.json", opts.StoragePath)
	assert.Equal(t, 504, opts.TagCapacity)
	assert.Equal(t, 60, opts.SessionTimeout)
	assert.Equal(t, "info", opts.LogLevel)
	assert.Empty(t, opts.MQTTBroker)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "json",
			file:    "config.json",
			content: `{"port":":9000","store":"sqlite","storage_path":"/var/lib/taglock/db","mqtt_broker":"tcp://broker:1883"}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: "port: \":9000\"\n" +
				"store: sqlite\n" +
				"storage_path: /var/lib/taglock/db\n" +
				"mqtt_broker: tcp://broker:1883\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			opts, err := Load(nil, env(map[string]string{
				"CONFIG":         path,
				"SERVER_ADDRESS": ":7000",
				"LOG_LEVEL":      "debug",
			}))
			require.NoError(t, err)

			assert.Equal(t, ":7000", opts.Port)
			assert.Equal(t, StoreSQLite, opts.Store)
			assert.Equal(t, "/var/lib/taglock/db", opts.StoragePath)
			assert.Equal(t, "tcp://broker:1883", opts.MQTTBroker)
			assert.Equal(t, "debug", opts.LogLevel)
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := Load([]string{"-config", path}, env(nil))
	assert.ErrorContains(t, err, "error while parsing config file")
}

func TestValidate(t *testing.T) {
	valid := func() Options {
		return Options{
			Store:          StoreFile,
			StoragePath:    "taglock.json",
			TagCapacity:    504,
			SessionTimeout: 60,
			LogLevel:       "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr string
	}{
		{name: "valid", mutate: func(*Options) {}},
		{name: "unknown store", mutate: func(o *Options) { o.Store = "redis" }, wantErr: "unknown store"},
		{name: "postgres without dsn", mutate: func(o *Options) { o.Store = StorePostgres }, wantErr: "database dsn"},
		{name: "cert without key", mutate: func(o *Options) { o.TLSCert = "server.crt" }, wantErr: "set together"},
		{name: "client ca without tls", mutate: func(o *Options) { o.ClientCA = "ca.crt" }, wantErr: "client CA"},
		{name: "zero capacity", mutate: func(o *Options) { o.TagCapacity = 0 }, wantErr: "tag capacity"},
		{name: "bad level", mutate: func(o *Options) { o.LogLevel = "loud" }, wantErr: "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid()
			tt.mutate(&o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
