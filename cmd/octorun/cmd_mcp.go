package main

import (
	"fmt"

	"github.com/nvandessel/octorun/internal/config"
	"github.com/nvandessel/octorun/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve octorun tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
octorun_render, octorun_parse, octorun_history and octorun_run tools.

Tools only read calculation files and folders below the --root folders
(default: the current directory). Tool calls are audited to
~/.octorun/audit.jsonl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, _ := cmd.Flags().GetStringSlice("root")
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			auditDir := ""
			if !noAudit {
				if auditDir, err = config.Dir(); err != nil {
					return err
				}
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "octorun",
				Version:  version,
				Settings: e.cfg,
				Roots:    roots,
				AuditDir: auditDir,
				Logger:   e.logger,
				Events:   e.events,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().StringSlice("root", nil, "Folder tools may read from (repeatable)")
	cmd.Flags().Bool("no-audit", false, "Do not write the audit log")
	return cmd
}
