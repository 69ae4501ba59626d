// Package service composes the tool registries of the services mcphub can run.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"code.cloudfoundry.org/lager/v3"
	"github.com/hashicorp/go-multierror"

	"github.com/mcphub/mcphub/internal/config"
	"github.com/mcphub/mcphub/internal/mcp"
	"github.com/mcphub/mcphub/internal/tools/cppcheck"
	"github.com/mcphub/mcphub/internal/tools/procedures"
)

// Service describes one runnable tool server.
type Service struct {
	Name        string
	Info        mcp.Implementation
	DefaultPort int
	// Tools lists the descriptors the service registers, without opening any
	// resources.
	Tools   func() []mcp.ToolDescriptor
	compose func(ctx context.Context, logger lager.Logger, cfg *config.Config, c *Composition) error
}

// Composition is a populated registry plus the resources its tools own.
type Composition struct {
	Registry *mcp.Registry
	closers  []func() error
}

// Close releases every owned resource, reporting all failures.
func (c *Composition) Close() error {
	var result *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result.ErrorOrNil()
}

func (c *Composition) onClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

var CppAnalyzer = Service{
	Name:        "cpp-analyzer",
	Info:        mcp.Implementation{Name: "cpp-analyzer", Version: "1.0.0"},
	DefaultPort: 8001,
	Tools: func() []mcp.ToolDescriptor {
		return []mcp.ToolDescriptor{cppcheck.Descriptor()}
	},
	compose: func(_ context.Context, _ lager.Logger, cfg *config.Config, c *Composition) error {
		return cppcheck.Register(c.Registry, cppcheck.NewRunner(cfg.Cppcheck.Binary, cfg.Cppcheck.Enable))
	},
}

var SPMetadata = Service{
	Name:        "sp-metadata",
	Info:        mcp.Implementation{Name: "SP Metadata MCP Server", Version: "1.0.0"},
	DefaultPort: 8000,
	Tools: func() []mcp.ToolDescriptor {
		return []mcp.ToolDescriptor{procedures.Descriptor()}
	},
	compose: composeSPMetadata,
}

// composeSPMetadata opens the database once for the process lifetime. An
// unreachable server does not prevent startup; calls report the failure.
func composeSPMetadata(ctx context.Context, logger lager.Logger, cfg *config.Config, c *Composition) error {
	if err := cfg.Database.Validate(); err != nil {
		return err
	}

	db, err := procedures.Connect(procedures.DriverName, cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	c.onClose(db.Close)

	logger = logger.Session("database", lager.Data{"server": cfg.Database.Server, "database": cfg.Database.Name})
	if err := procedures.Ping(ctx, logger, db, cfg.Database.ConnectRetries); err != nil {
		logger.Error("database-unreachable", err)
	} else {
		logger.Info("connected")
	}

	source := procedures.NewCachedSource(procedures.NewCatalogSource(db), cfg.Database.CacheTTL)
	return procedures.Register(c.Registry, source)
}

// Compose builds the service's registry. The caller owns the returned
// composition and must Close it.
func (s Service) Compose(ctx context.Context, logger lager.Logger, cfg *config.Config) (*Composition, error) {
	c := &Composition{Registry: mcp.NewRegistry()}
	if err := s.compose(ctx, logger, cfg, c); err != nil {
		closeErr := c.Close()
		if closeErr != nil {
			return nil, fmt.Errorf("compose %s: %w (close: %v)", s.Name, err, closeErr)
		}
		return nil, fmt.Errorf("compose %s: %w", s.Name, err)
	}
	return c, nil
}

var services = map[string]Service{
	CppAnalyzer.Name: CppAnalyzer,
	SPMetadata.Name:  SPMetadata,
}

func Names() []string {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (Service, error) {
	s, ok := services[name]
	if !ok {
		return Service{}, fmt.Errorf("unknown service %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return s, nil
}
