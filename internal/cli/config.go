package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	BehaviorPack string `json:"behavior_pack,omitempty"`
	ResourcePack string `json:"resource_pack,omitempty"`
	Output       string `json:"output,omitempty"`
	Schema       string `json:"schema,omitempty"`

	// Resolved paths (computed, not serialized)
	EffectiveCwd string `json:"-"`

	// Sources tracks which config files were loaded (for diagnostics)
	Sources ConfigSources `json:"-"`
}

// ConfigSources tracks which config files were loaded.
type ConfigSources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// ConfigFileName is the default project config file name.
const ConfigFileName = ".packdb.json"

// configKeys lists the path-valued keys in print order.
var configKeys = []string{"behavior_pack", "resource_pack", "output", "schema"}

// globalConfigPath returns $XDG_CONFIG_HOME/packdb/config.json, falling
// back to ~/.config/packdb/config.json. Empty if neither is known.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "packdb", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "packdb", "config.json")
	}

	return ""
}

// LoadConfigInput holds the inputs for LoadConfig.
type LoadConfigInput struct {
	WorkDir    string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath string            // -c/--config flag value
	Overrides  map[string]string // flag values by config key, only flags that were set
	Env        map[string]string
}

// LoadConfig loads configuration with the following precedence (highest wins):
// 1. Global user config ($XDG_CONFIG_HOME/packdb/config.json)
// 2. Project config file (.packdb.json in the work dir, if it exists)
// 3. Explicit config file via ConfigPath, replacing the project file
// 4. CLI overrides.
//
// Paths from config files resolve against the directory of the file;
// paths from flags against the work dir. All paths in the returned
// Config are absolute.
func LoadConfig(input LoadConfigInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
	}

	var cfg Config

	if path := globalConfigPath(input.Env); path != "" {
		fileCfg, loaded, err := loadConfigFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg = mergeConfig(cfg, fileCfg)
			cfg.Sources.Global = path
		}
	}

	projectPath := filepath.Join(workDir, ConfigFileName)
	mustExist := false

	if input.ConfigPath != "" {
		projectPath = input.ConfigPath
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		mustExist = true

		if _, statErr := os.Stat(projectPath); statErr != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	fileCfg, loaded, err := loadConfigFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = mergeConfig(cfg, fileCfg)
		cfg.Sources.Project = projectPath
	}

	for key, value := range input.Overrides {
		if value == "" {
			return Config{}, fmt.Errorf("%w: --%s", ErrEmptyPath, flagForKey(key))
		}

		setConfigKey(&cfg, key, resolvePath(workDir, value))
	}

	cfg.EffectiveCwd = workDir

	return cfg, nil
}

// loadConfigFile loads a config file and resolves its paths against the
// file's directory. If mustExist is false, a missing file is not an error.
func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	base := filepath.Dir(path)
	for _, key := range configKeys {
		if v := configKey(cfg, key); v != "" {
			setConfigKey(&cfg, key, resolvePath(base, v))
		}
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	// Unknown keys are rejected so typos do not silently fall back to defaults.
	var raw map[string]json.RawMessage

	err = json.Unmarshal(standardized, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	for key := range raw {
		if !isConfigKey(key) {
			return Config{}, fmt.Errorf("unknown key %q", key)
		}
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	for _, key := range []string{"behavior_pack", "resource_pack"} {
		if v, ok := raw[key]; ok && string(v) == `""` {
			return Config{}, fmt.Errorf("%s: %w", key, ErrEmptyPath)
		}
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	for _, key := range configKeys {
		if v := configKey(overlay, key); v != "" {
			setConfigKey(&base, key, v)
		}
	}

	return base
}

func configKey(cfg Config, key string) string {
	switch key {
	case "behavior_pack":
		return cfg.BehaviorPack
	case "resource_pack":
		return cfg.ResourcePack
	case "output":
		return cfg.Output
	case "schema":
		return cfg.Schema
	default:
		return ""
	}
}

func setConfigKey(cfg *Config, key, value string) {
	switch key {
	case "behavior_pack":
		cfg.BehaviorPack = value
	case "resource_pack":
		cfg.ResourcePack = value
	case "output":
		cfg.Output = value
	case "schema":
		cfg.Schema = value
	}
}

func isConfigKey(key string) bool {
	for _, k := range configKeys {
		if k == key {
			return true
		}
	}

	return false
}

// flagForKey maps a config key to the global flag that overrides it.
func flagForKey(key string) string {
	switch key {
	case "behavior_pack":
		return "bp"
	case "resource_pack":
		return "rp"
	default:
		return strings.ReplaceAll(key, "_", "-")
	}
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(base, p)
}

// FormatConfig renders cfg as key=value lines, unset keys omitted.
func FormatConfig(cfg Config) string {
	var lines []string

	for _, key := range configKeys {
		if v := configKey(cfg, key); v != "" {
			lines = append(lines, key+"="+v)
		}
	}

	return strings.Join(lines, "\n")
}
