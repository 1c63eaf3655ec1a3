// Package config provides configuration loading, merging, and path management
// for Toolgate.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from multiple
// sources in priority order:
//
//  1. Global config (~/.toolgate/)
//  2. Global config (~/.config/toolgate/ - XDG compatible)
//  3. Project config (toolgate.json/toolgate.jsonc and .toolgate/ variants)
//  4. TOOLGATE_CONFIG file
//  5. TOOLGATE_CONFIG_CONTENT inline JSON
//  6. Environment variables
//
// Later sources override earlier ones; environment variables have the highest
// precedence.
//
// # Supported Formats
//
// Both JSON and JSONC (JSON with Comments) are accepted:
//   - toolgate.json - Standard JSON configuration
//   - toolgate.jsonc - JSON with comments, processed using tidwall/jsonc
//
// # Variable Interpolation
//
// Configuration files support two types of variable interpolation:
//   - {env:VAR_NAME} - Expands to environment variable values
//   - {file:path} - Expands to file contents (properly escaped for JSON)
//
// File paths in {file:path} placeholders support absolute paths, paths
// relative to the config file directory, and ~/ home expansion.
//
// Example:
//
//	{
//	  "model": "anthropic/claude-sonnet-4-20250514",
//	  "profile": "readonly",
//	  "provider": {
//	    "anthropic": {
//	      "options": {
//	        "apiKey": "{env:ANTHROPIC_API_KEY}"
//	      }
//	    }
//	  }
//	}
//
// # Path Management
//
// The Paths type provides XDG Base Directory Specification compliant paths:
//   - Data: ~/.local/share/toolgate (XDG_DATA_HOME) - pattern store lives here
//   - Config: ~/.config/toolgate (XDG_CONFIG_HOME) - profiles.yaml lives here
//   - Cache: ~/.cache/toolgate (XDG_CACHE_HOME)
//   - State: ~/.local/state/toolgate (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Environment Variable Overrides
//
//   - TOOLGATE_MODEL - Override the default model
//   - TOOLGATE_PROFILE - Override the policy profile
//   - TOOLGATE_MAX_TURNS - Override the dispatcher turn limit
//   - TOOLGATE_STORE - Override the pattern store path
//   - TOOLGATE_CONFIG - Path to a specific config file
//   - TOOLGATE_CONFIG_CONTENT - Inline JSON configuration
//   - TOOLGATE_CONFIG_DIR - Override the config directory location
//
// Provider API keys are also picked up from the conventional variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY).
package config
