// Package detection scans tool-call arguments for secrets before a tool runs.
package detection

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/mcphub/mcphub/internal/mcp"
)

type Result struct {
	RuleID      string
	Description string
	// Argument is the dotted path of the offending value, e.g. "path" or "files.0".
	Argument string
}

type Engine struct {
	detector *detect.Detector
}

var _ mcp.ArgumentGuard = (*Engine)(nil)

// NewEngine creates a detection engine. With an empty configPath the
// gitleaks default rule set is used, otherwise the toml file at configPath.
func NewEngine(configPath string) (*Engine, error) {
	if configPath == "" {
		detector, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load default rules: %w", err)
		}
		return &Engine{detector: detector}, nil
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var vc config.ViperConfig
	if err := v.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("failed to translate config: %w", err)
	}

	return &Engine{detector: detect.NewDetector(cfg)}, nil
}

// Detect walks every string in the call's arguments, including nested maps
// and slices.
func (e *Engine) Detect(call mcp.ToolCall) []Result {
	var results []Result
	walk("", call.Arguments, func(path, value string) {
		for _, finding := range e.detector.DetectString(value) {
			results = append(results, Result{
				RuleID:      finding.RuleID,
				Description: finding.Description,
				Argument:    path,
			})
		}
	})
	return results
}

// Inspect implements mcp.ArgumentGuard.
func (e *Engine) Inspect(call mcp.ToolCall) error {
	results := e.Detect(call)
	if len(results) == 0 {
		return nil
	}

	reasons := make([]string, 0, len(results))
	for _, r := range results {
		reasons = append(reasons, fmt.Sprintf("%s in %s", r.Description, r.Argument))
	}
	return &mcp.BlockedError{Tool: call.Name, Reasons: reasons}
}

func walk(path string, value interface{}, visit func(path, value string)) {
	switch v := value.(type) {
	case string:
		visit(path, v)
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(join(path, k), v[k], visit)
		}
	case []interface{}:
		for i, item := range v {
			walk(join(path, fmt.Sprint(i)), item, visit)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
