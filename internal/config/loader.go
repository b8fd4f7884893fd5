package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize guards against accidentally pointing at a huge file.
const maxConfigFileSize = 1024 * 1024

// envPrefix namespaces corpusd environment variables.
const envPrefix = "CORPUSD_"

// Load reads configuration with the following precedence, highest first:
//
//  1. Environment variables (CORPUSD_SERVER_PORT, CORPUSD_STORE_BACKEND, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty configPath uses the default location; a missing file is not an
// error, the defaults and environment apply.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		var err error
		configPath, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("%w: config file %s exceeds %d bytes", ErrInvalidConfig, configPath, maxConfigFileSize)
		}
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("opening config file: %w", err)
		}
		defer f.Close()

		content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	// CORPUSD_SERVER_PORT -> server.port
	// CORPUSD_STORE_CHROMEM_PATH -> store.chromem.path
	// CORPUSD_EMBEDDINGS_BASE_URL -> embeddings.base_url
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envTransform maps CORPUSD_SECTION_FIELD_NAME to section.field_name.
// Nested store sections get a second split: STORE_CHROMEM_PATH becomes
// store.chromem.path.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, field := parts[0], parts[1]
	if section == "store" {
		if sub := strings.SplitN(field, "_", 2); len(sub) == 2 && (sub[0] == "chromem" || sub[0] == "qdrant") {
			return section + "." + sub[0] + "." + sub[1]
		}
	}
	return section + "." + field
}
