// Package config provides configuration management for mnemo.
// Runtime settings come from environment variables with the MNEMO_ prefix;
// per-workspace settings (type layout, planner thresholds) come from the
// workspace's mnemo.yaml and fall back to built-in defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the mnemo binaries.
type Config struct {
	Workspace WorkspaceSettings
	Planner   PlannerSettings
	Git       GitSettings
	MCP       MCPSettings
	Watch     WatchSettings
}

// WorkspaceSettings controls workspace discovery.
type WorkspaceSettings struct {
	// Dir is an explicit workspace directory. When empty, discovery walks up
	// from the current directory looking for a mnemo.yaml marker.
	// Env var: MNEMO_DIR
	Dir string
}

// PlannerSettings holds detection thresholds. Workspace-level mnemo.yaml
// values override these; CLI flags override both.
type PlannerSettings struct {
	// TitleThreshold is the minimum title similarity ratio for the duplicate
	// detector (default: 0.8).
	TitleThreshold float64

	// TagOverlapThreshold is the minimum tag Jaccard overlap for the
	// duplicate detector (default: 0.5).
	TagOverlapThreshold float64
}

// GitSettings controls the version-control collaborator.
type GitSettings struct {
	// Disabled turns off all git invocations (stash/commit). Rollback then
	// degrades to "report but do not restore".
	// Env var: MNEMO_GIT_DISABLE
	Disabled bool
}

// MCPSettings controls the MCP stdio server.
type MCPSettings struct {
	// RequestsPerSecond rate-limits tool calls (default: 10).
	// Env var: MNEMO_MCP_RATE
	RequestsPerSecond float64

	// Burst is the rate-limiter burst size (default: 20).
	// Env var: MNEMO_MCP_BURST
	Burst int
}

// WatchSettings controls the rebuild-on-change watcher.
type WatchSettings struct {
	// Debounce is how long to wait after the last directive change before
	// triggering a rebuild (default: 2s).
	// Env var: MNEMO_WATCH_DEBOUNCE (Go duration string)
	Debounce time.Duration
}

// Load builds a Config from environment variables and defaults.
func Load() *Config {
	return &Config{
		Workspace: WorkspaceSettings{
			Dir: getEnv("MNEMO_DIR", ""),
		},
		Planner: PlannerSettings{
			TitleThreshold:      0.8,
			TagOverlapThreshold: 0.5,
		},
		Git: GitSettings{
			Disabled: getEnvBool("MNEMO_GIT_DISABLE", false),
		},
		MCP: MCPSettings{
			RequestsPerSecond: getEnvFloat("MNEMO_MCP_RATE", 10),
			Burst:             getEnvInt("MNEMO_MCP_BURST", 20),
		},
		Watch: WatchSettings{
			Debounce: getEnvDuration("MNEMO_WATCH_DEBOUNCE", 2*time.Second),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. Recognizes "true"/"1"/"yes" and "false"/"0"/"no" case-insensitively.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a
// default value. Unparseable values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
