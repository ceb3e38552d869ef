package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/garmin-connect-go/internal/app"
)

// envPrefix marks variables read into the config. Double underscores nest:
// GCCONNECT_AUTH__STORAGE sets auth.storage.
const envPrefix = "GCCONNECT_"

// passwordPrompt asks for the account password when no source provided one.
type passwordPrompt func(username string) (string, error)

// configSource feeds one layer into k. Later layers win.
type configSource struct {
	name string
	load func(k *koanf.Koanf) error
}

// loadConfig merges the toml file, GCCONNECT_ variables and set flags in that
// order, fills defaults, prompts for a missing password and validates.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string, prompt passwordPrompt) (*app.Config, error) {
	k := koanf.New(".")

	for _, src := range configSources(configPath, cmd, environFunc) {
		if err := src.load(k); err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.name, err)
		}
	}

	cfg := &app.Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := promptPassword(cfg, prompt); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func configSources(configPath string, cmd *cli.Command, environFunc func() []string) []configSource {
	var sources []configSource

	if configPath != "" {
		sources = append(sources, configSource{
			name: "config file " + configPath,
			load: func(k *koanf.Koanf) error {
				return k.Load(file.Provider(configPath), toml.Parser())
			},
		})
	}

	sources = append(sources, configSource{
		name: "environment",
		load: func(k *koanf.Koanf) error {
			return k.Load(env.Provider(".", env.Opt{
				Prefix:        envPrefix,
				TransformFunc: envKey,
				EnvironFunc:   environFunc,
			}), nil)
		},
	})

	if cmd != nil {
		sources = append(sources, configSource{
			name: "flags",
			load: func(k *koanf.Koanf) error {
				return k.Load(confmap.Provider(extractAndTransformFlags(cmd), "."), nil)
			},
		})
	}

	return sources
}

func envKey(key, value string) (string, any) {
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(key, "__", ".")), value
}

func promptPassword(cfg *app.Config, prompt passwordPrompt) error {
	if prompt == nil || cfg.Garmin.Username == "" || cfg.Garmin.Password != "" {
		return nil
	}
	password, err := prompt(cfg.Garmin.Username)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	cfg.Garmin.Password = password
	return nil
}

// extractAndTransformFlags maps explicitly set flags to config keys:
// --garmin--username becomes garmin.username, --log-level becomes log_level.
// Command-only flags such as --start or --format are left out.
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		if !cmd.IsSet(name) || !isConfigFlag(name) {
			continue
		}
		value := cmd.Value(name)
		if value == nil {
			continue
		}
		key := strings.ReplaceAll(strings.ReplaceAll(name, "--", "."), "-", "_")
		values[key] = value
	}

	return values
}

func isConfigFlag(name string) bool {
	return strings.Contains(name, "--") || strings.HasPrefix(name, "log-")
}
