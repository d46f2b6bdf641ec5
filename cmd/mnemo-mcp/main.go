// cmd/mnemo-mcp is the entry point for the mnemo MCP (Model Context Protocol)
// server. It locates the memory workspace and serves JSON-RPC 2.0 tool calls
// from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr. Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mnemo-sh/mnemo/internal/api/mcp"
	"github.com/mnemo-sh/mnemo/internal/config"
	"github.com/mnemo-sh/mnemo/internal/workspace"
)

func main() {
	// Redirect the default logger to stderr so that any incidental log calls
	// from imported packages never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("mnemo-mcp: ")
	log.SetFlags(log.LstdFlags)

	dir := flag.String("dir", "", "workspace directory (default: $MNEMO_DIR or walk up from cwd)")
	flag.Parse()

	cfg := config.Load()

	ws, err := workspace.Find(*dir, cfg.Workspace.Dir)
	if err != nil {
		log.Fatalf("workspace: %v", err)
	}
	log.Printf("serving workspace %s", ws.Root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	srv := mcp.NewServer(ws, mcp.WithConfig(cfg))
	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)
	if err := transport.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("serve: %v", err)
	}
}
