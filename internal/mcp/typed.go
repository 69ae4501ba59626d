package mcp

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Typed adapts a handler taking a concrete argument struct. Arguments are
// decoded using the struct's json tags; unknown keys and mistyped values are
// rejected as an *ArgumentError before fn runs.
func Typed[T any](fn func(ctx context.Context, args T) (string, error)) Handler {
	return func(ctx context.Context, raw map[string]interface{}) (string, error) {
		var args T
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:     "json",
			ErrorUnused: true,
			Result:      &args,
		})
		if err != nil {
			return "", fmt.Errorf("argument decoder: %w", err)
		}
		if err := decoder.Decode(raw); err != nil {
			return "", &ArgumentError{Err: err}
		}
		return fn(ctx, args)
	}
}
