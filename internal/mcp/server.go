// Package mcp provides an MCP (Model Context Protocol) server for octorun.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/octorun/internal/config"
	"github.com/nvandessel/octorun/internal/history"
	"github.com/nvandessel/octorun/internal/logging"
	"github.com/nvandessel/octorun/internal/ratelimit"
)

// Server wraps the MCP SDK server and the services the tools use.
type Server struct {
	server   *sdk.Server
	settings *config.OctorunConfig
	history  *history.Store
	roots    []string
	logger   *slog.Logger
	events   *logging.EventLogger
	audit    *AuditLogger
	limits   ratelimit.Tools
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "octorun")
	Version string // Server version

	// Settings is the loaded octorun configuration. Nil means defaults.
	Settings *config.OctorunConfig

	// Roots limits the files and folders tools may read. Empty means the
	// current directory.
	Roots []string

	// AuditDir receives audit.jsonl. Empty disables auditing.
	AuditDir string

	Logger *slog.Logger
	Events *logging.EventLogger
}

// NewServer creates a new MCP server with octorun tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	roots := cfg.Roots
	if len(roots) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		roots = []string{wd}
	}

	var store *history.Store
	if settings.History.Enabled {
		path, err := settings.HistoryPath()
		if err != nil {
			return nil, err
		}
		store, err = history.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
	}

	var audit *AuditLogger
	if cfg.AuditDir != "" {
		audit = NewAuditLogger(cfg.AuditDir)
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		settings: settings,
		history:  store,
		roots:    roots,
		logger:   logger,
		events:   cfg.Events,
		audit:    audit,
		limits:   ratelimit.DefaultTools(),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects, the context is
// cancelled or the process receives an interrupt.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Debug("mcp server listening on stdio", "roots", s.roots)
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the history database and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			firstErr = err
		}
		s.history = nil
	}
	if err := s.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.audit = nil
	return firstErr
}
