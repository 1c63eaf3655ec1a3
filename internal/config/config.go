package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config holds the Toolgate runtime configuration.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	// Model is the default model in "provider/model" form.
	Model string `json:"model,omitempty"`

	// Profile selects the policy profile applied to tool calls.
	Profile string `json:"profile,omitempty"`

	// MaxTurns overrides the dispatcher turn limit when > 0.
	MaxTurns int `json:"maxTurns,omitempty"`

	// StorePath overrides the persistent pattern store location.
	StorePath string `json:"storePath,omitempty"`

	// ProfilesPath overrides the YAML policy profiles file location.
	ProfilesPath string `json:"profilesPath,omitempty"`

	// Tools toggles individual tools on or off.
	Tools map[string]bool `json:"tools,omitempty"`

	// Instructions are extra system prompt fragments.
	Instructions []string `json:"instructions,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`
}

// ProviderConfig holds connection settings for one model provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
	Model   string `json:"model,omitempty"`

	// Options mirrors the nested layout some config files use.
	Options *ProviderOptions `json:"options,omitempty"`
}

// ProviderOptions is the nested options block of a provider entry.
type ProviderOptions struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.toolgate/)
// 2. Global config (~/.config/toolgate/ - XDG compatible)
// 3. Project config (.toolgate/)
// 4. TOOLGATE_CONFIG file
// 5. TOOLGATE_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{
		Provider: make(map[string]ProviderConfig),
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Dotfile-style global config (~/.toolgate/)
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".toolgate")
		loadOnce(filepath.Join(dotDir, "config.json"), dotDir)
		loadOnce(filepath.Join(dotDir, "toolgate.json"), dotDir)
		loadOnce(filepath.Join(dotDir, "toolgate.jsonc"), dotDir)
	}

	// 2. XDG-compatible global config (~/.config/toolgate/)
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "toolgate.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "toolgate.jsonc"), globalPath)

	// 3. Project config
	if directory != "" {
		projectConfigDir := filepath.Join(directory, ".toolgate")
		loadOnce(filepath.Join(directory, "toolgate.json"), directory)
		loadOnce(filepath.Join(directory, "toolgate.jsonc"), directory)
		loadOnce(filepath.Join(projectConfigDir, "toolgate.json"), projectConfigDir)
		loadOnce(filepath.Join(projectConfigDir, "toolgate.jsonc"), projectConfigDir)
	}

	// 4. TOOLGATE_CONFIG file override
	if configPath := os.Getenv("TOOLGATE_CONFIG"); configPath != "" {
		configDir := filepath.Dir(configPath)
		loadOnce(configPath, configDir)
	}

	// 5. TOOLGATE_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("TOOLGATE_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig Config
		if err := json.Unmarshal([]byte(configContent), &inlineConfig); err == nil {
			mergeConfig(config, &inlineConfig)
		}
	}

	// 6. Environment variables (highest priority)
	applyEnvOverrides(config)

	// Normalize provider config (merge Options into direct fields)
	normalizeProviderConfig(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	// Apply interpolation
	data = interpolate(data, baseDir)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	// Handle {env:VAR_NAME} placeholders
	envPattern := regexp.MustCompile(`\{env:([^}]+)\}`)
	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	// Handle {file:path} placeholders
	filePattern := regexp.MustCompile(`\{file:([^}]+)\}`)
	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		// Resolve path
		if strings.HasPrefix(filePath, "~/") {
			home := os.Getenv("HOME")
			filePath = filepath.Join(home, filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string
		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// normalizeProviderConfig merges Options fields into direct fields for compatibility.
func normalizeProviderConfig(config *Config) {
	for name, provider := range config.Provider {
		if provider.Options != nil {
			// Options take precedence over direct fields
			if provider.Options.APIKey != "" {
				provider.APIKey = provider.Options.APIKey
			}
			if provider.Options.BaseURL != "" {
				provider.BaseURL = provider.Options.BaseURL
			}
		}
		config.Provider[name] = provider
	}
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.Profile != "" {
		target.Profile = source.Profile
	}
	if source.MaxTurns > 0 {
		target.MaxTurns = source.MaxTurns
	}
	if source.StorePath != "" {
		target.StorePath = source.StorePath
	}
	if source.ProfilesPath != "" {
		target.ProfilesPath = source.ProfilesPath
	}

	// Merge tools
	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}

	// Merge instructions
	if len(source.Instructions) > 0 {
		target.Instructions = append(target.Instructions, source.Instructions...)
	}

	// Merge providers
	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *Config) {
	// Provider API keys
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			if config.Provider == nil {
				config.Provider = make(map[string]ProviderConfig)
			}
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	// Model override
	if model := os.Getenv("TOOLGATE_MODEL"); model != "" {
		config.Model = model
	}

	// Profile override
	if profile := os.Getenv("TOOLGATE_PROFILE"); profile != "" {
		config.Profile = profile
	}

	// Turn limit override
	if maxTurns := os.Getenv("TOOLGATE_MAX_TURNS"); maxTurns != "" {
		if n, err := strconv.Atoi(maxTurns); err == nil && n > 0 {
			config.MaxTurns = n
		}
	}

	// Pattern store override
	if storePath := os.Getenv("TOOLGATE_STORE"); storePath != "" {
		config.StorePath = storePath
	}
}

// PatternStorePath returns the effective pattern store location.
func (c *Config) PatternStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}
	return GetPaths().PatternStorePath()
}

// PolicyProfilesPath returns the effective policy profiles location.
func (c *Config) PolicyProfilesPath() string {
	if c.ProfilesPath != "" {
		return c.ProfilesPath
	}
	return GetPaths().ProfilesPath()
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetConfigDir returns the config directory to use.
// Prefers TOOLGATE_CONFIG_DIR, then ~/.toolgate, then ~/.config/toolgate.
func GetConfigDir() string {
	// Check environment variable first
	if dir := os.Getenv("TOOLGATE_CONFIG_DIR"); dir != "" {
		return dir
	}

	// Check for dotfile-style location
	home := os.Getenv("HOME")
	if home != "" {
		dotDir := filepath.Join(home, ".toolgate")
		if _, err := os.Stat(dotDir); err == nil {
			return dotDir
		}
	}

	// Fall back to XDG location
	return GetPaths().Config
}
