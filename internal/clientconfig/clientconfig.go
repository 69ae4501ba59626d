// Package clientconfig registers mcphub services in MCP client settings files.
package clientconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const serversKey = "mcpServers"

// DefaultSettingsPath is the Gemini CLI user settings file.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".gemini", "settings.json"), nil
}

// Install points mcpServers.<name> of the settings file at path to url.
// Other keys, including other fields of the entry, are preserved. An existing file is copied to path+".bak"
// before it is rewritten; a missing one is created. The result reports
// whether the file changed.
func Install(path, name, url string) (bool, error) {
	if name == "" {
		return false, errors.New("server name is required")
	}
	if url == "" {
		return false, errors.New("server url is required")
	}

	settings := map[string]interface{}{}
	original, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		original = nil
	case err != nil:
		return false, fmt.Errorf("failed to read file: %w", err)
	case len(original) > 0:
		if err := json.Unmarshal(original, &settings); err != nil {
			return false, fmt.Errorf("failed to parse JSON in %s: %w", path, err)
		}
		if settings == nil {
			settings = map[string]interface{}{}
		}
	}

	if !setServer(settings, name, url) {
		return false, nil
	}

	if original != nil {
		if err := os.WriteFile(path+".bak", original, 0o644); err != nil {
			return false, fmt.Errorf("failed to create backup file: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create settings directory: %w", err)
	}

	updated, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(path, append(updated, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("failed to write settings file: %w", err)
	}
	return true, nil
}

func setServer(settings map[string]interface{}, name, url string) bool {
	servers, ok := settings[serversKey].(map[string]interface{})
	if !ok {
		servers = map[string]interface{}{}
		settings[serversKey] = servers
	}

	entry, ok := servers[name].(map[string]interface{})
	if !ok {
		entry = map[string]interface{}{}
		servers[name] = entry
	}
	if current, _ := entry["httpUrl"].(string); current == url {
		return false
	}
	entry["httpUrl"] = url
	return true
}
