package cmd

import (
	"context"
	"fmt"
	"strings"
)

const usage = `aichat is a multi-vendor LLM chat backend.

Usage:
  aichat serve  --config <path> [--port <port>]
  aichat models --config <path>

Commands:
  serve    Start the HTTP server
  models   List the configured providers and models

Flags:
  -h, --help  Show this help message`

// Execute runs the CLI dispatcher with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return printUsage()
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "models":
		return listModels(args[1:])
	case "help", "-h", "--help":
		return printUsage()
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func printUsage() error {
	fmt.Println(strings.TrimSpace(usage))
	return nil
}
