package procedures

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"

	"github.com/mcphub/mcphub/internal/mcp"
)

const ToolName = "get_sp_list"

type Args struct {
	// Refresh bypasses the metadata cache.
	Refresh bool `json:"refresh"`
}

type invalidator interface {
	Invalidate()
}

func Descriptor() mcp.ToolDescriptor {
	return mcp.ToolDescriptor{
		Name:        ToolName,
		Description: "Returns stored procedure list with parameters",
		InputSchema: mcp.InputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"refresh": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-read the catalog instead of using cached metadata",
				},
			},
			Required: []string{},
		},
	}
}

func Register(registry *mcp.Registry, source Source) error {
	return registry.Register(Descriptor(), mcp.Typed(func(ctx context.Context, args Args) (string, error) {
		logger := lagerctx.FromContext(ctx).Session("get-sp-list")

		if inv, ok := source.(invalidator); ok && args.Refresh {
			inv.Invalidate()
		}

		procedures, err := source.Fetch(ctx)
		if err != nil {
			return "", err
		}
		logger.Debug("fetched", lager.Data{"procedures": len(procedures)})

		return render(procedures)
	}))
}

// render produces two-space indented JSON with non-ASCII and HTML characters
// left unescaped.
func render(procedures []Procedure) (string, error) {
	if procedures == nil {
		procedures = []Procedure{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(procedures); err != nil {
		return "", fmt.Errorf("render procedures: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
