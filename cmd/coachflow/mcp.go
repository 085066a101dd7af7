package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/coachflow"
	"github.com/aretw0/coachflow/internal/config"
	"github.com/aretw0/coachflow/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes coaching flows as MCP tools so AI agents can drive conversations.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd, func(cfg *config.Config) {
			if cmd.Flags().Changed("transport") {
				cfg.MCP.Transport, _ = cmd.Flags().GetString("transport")
			}
			if cmd.Flags().Changed("addr") {
				cfg.MCP.Addr, _ = cmd.Flags().GetString("addr")
			}
		})
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := mcp.NewServer(rt.Engine, strings.TrimSpace(coachflow.Version), mcp.WithLogger(rt.Logger))

		switch rt.Config.MCP.Transport {
		case "stdio":
			// Logs already go to stderr; stdout carries JSON-RPC only.
			rt.Logger.Info("starting coachflow mcp server (stdio)")
			return srv.ServeStdio()
		case "sse":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			baseURL, _ := cmd.Flags().GetString("base-url")
			if baseURL == "" {
				baseURL = "http://localhost" + rt.Config.MCP.Addr
			}
			if err := srv.ServeSSE(ctx, rt.Config.MCP.Addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			rt.Logger.Info("mcp server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", rt.Config.MCP.Transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "", "Address to listen on (only for SSE)")
	mcpCmd.Flags().String("base-url", "", "Public base URL advertised to SSE clients")
}
