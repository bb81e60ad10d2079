// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ALEUTIAN_GRAPH_"

// ErrInvalidConfig wraps every validation and override failure.
var ErrInvalidConfig = errors.New("invalid configuration")

var configValidate = validator.New()

// Load reads the configuration at path, creating it with defaults on first
// run. An empty path means DefaultPath().
//
// Description:
//
//	Keys missing from the file keep their defaults. ALEUTIAN_GRAPH_*
//	environment variables override the file, then the result is validated.
//
// Outputs:
//
//	Config - The effective configuration.
//	bool - True if the file was created by this call.
//	error - Non-nil on I/O, parse or validation failure.
func Load(path string) (Config, bool, error) {
	if path == "" {
		path = DefaultPath()
	}
	created := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return Config{}, false, err
		}
		created = true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, created, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, os.LookupEnv)
	return cfg, created, err
}

// Parse decodes data over the defaults and applies overrides from lookup.
func Parse(data []byte, lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse: %v", ErrInvalidConfig, err)
	}
	if lookup != nil {
		if err := applyEnv(&cfg, lookup); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// envString and envInt bind variable names to config fields.
type envString struct {
	name string
	dst  *string
}

type envInt struct {
	name string
	dst  *int
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []envString{
		{"STORAGE_BACKEND", &cfg.Storage.Backend},
		{"STORAGE_PATH", &cfg.Storage.Path},
		{"GCS_BUCKET", &cfg.Storage.GCS.Bucket},
		{"GCS_PREFIX", &cfg.Storage.GCS.Prefix},
		{"GCS_CREDENTIALS_FILE", &cfg.Storage.GCS.CredentialsFile},
		{"AZURE_CONTAINER", &cfg.Storage.Azure.Container},
		{"AZURE_PREFIX", &cfg.Storage.Azure.Prefix},
		{"AZURE_CONNECTION_STRING", &cfg.Storage.Azure.ConnectionString},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_DIR", &cfg.Logging.Dir},
		{"TELEMETRY_EXPORTER", &cfg.Telemetry.Exporter},
		{"OTLP_ENDPOINT", &cfg.Telemetry.Endpoint},
		{"MANIFEST", &cfg.Server.Manifest},
	}
	for _, e := range strs {
		if v, ok := lookup(EnvPrefix + e.name); ok {
			*e.dst = v
		}
	}

	ints := []envInt{
		{"WORKERS", &cfg.Executor.Workers},
		{"PORT", &cfg.Server.Port},
	}
	for _, e := range ints {
		v, ok := lookup(EnvPrefix + e.name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalidConfig, EnvPrefix, e.name, v)
		}
		*e.dst = n
	}

	if v, ok := lookup(EnvPrefix + "FORCE_RETRAIN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sFORCE_RETRAIN=%q is not a boolean", ErrInvalidConfig, EnvPrefix, v)
		}
		cfg.Executor.ForceRetrain = b
	}
	if v, ok := lookup(EnvPrefix + "PACKAGES"); ok {
		cfg.Packages.Available = splitList(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
