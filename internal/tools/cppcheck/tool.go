package cppcheck

import (
	"context"
	"errors"

	"github.com/mcphub/mcphub/internal/mcp"
)

const ToolName = "run_cppcheck"

// ReportHeader prefixes every report returned to the client.
const ReportHeader = "📊 Static analysis result:\n"

// Analyzer runs static analysis on a path. *Runner is the production
// implementation.
type Analyzer interface {
	Run(ctx context.Context, path string) (string, error)
}

type Args struct {
	Path string `json:"path"`
}

func Descriptor() mcp.ToolDescriptor {
	return mcp.ToolDescriptor{
		Name:        ToolName,
		Description: "Run cppcheck static analysis on a C++ project folder",
		InputSchema: mcp.InputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source folder",
				},
			},
			Required: []string{"path"},
		},
	}
}

func Register(registry *mcp.Registry, analyzer Analyzer) error {
	return registry.Register(Descriptor(), mcp.Typed(func(ctx context.Context, args Args) (string, error) {
		if args.Path == "" {
			return "", &mcp.ArgumentError{Err: errors.New("path must not be empty")}
		}
		report, err := analyzer.Run(ctx, args.Path)
		if err != nil {
			return "", err
		}
		return ReportHeader + report, nil
	}))
}
