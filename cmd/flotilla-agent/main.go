// Package main provides the flotilla-agent binary that runs on ships
// whose Docker daemon is not directly reachable.
//
// The agent provides Docker access on the ship itself. Flotilla reaches
// it via SSH exec, exchanging JSON on stdin/stdout.
//
// Usage:
//
//	flotilla-agent <command> [args...]
//
// Commands:
//
//	version                      - Show agent version
//	ping                         - Test Docker connection
//	create-container             - Create a container (JSON spec from stdin)
//	start-container <name>       - Start a container
//	stop-container <name>        - Stop a container (JSON opts from stdin)
//	kill-container <name>        - Kill a container
//	remove-container <name>      - Remove a container
//	inspect-container <name>     - Inspect a container
//	pull-image                   - Pull an image (JSON request from stdin)
//	inspect-image <image>        - Return a local image's ID
//	container-logs <name>        - Dump container logs (JSON opts from stdin)
package main

import (
	"encoding/json"
	"os"
	"runtime"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
)

// Version information (set by build flags)
var (
	Version   = agent.Version
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		outputError("usage", agent.ErrCodeInvalidInput, "usage: flotilla-agent <command> [args...]")
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if err := dispatch(cmd, args); err != nil {
		// Error already written to stdout by command handler
		os.Exit(1)
	}
}

// outputSuccess writes a success response to stdout.
func outputSuccess(data interface{}) {
	resp, err := agent.NewSuccessResponse(data)
	if err != nil {
		outputError("internal", agent.ErrCodeInternal, err.Error())
		return
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// outputError writes an error response to stdout.
func outputError(command, code, message string) {
	resp := agent.NewErrorResponse(command, code, message)
	json.NewEncoder(os.Stdout).Encode(resp)
}

// versionCmd handles the "version" command.
func versionCmd() error {
	info := agent.VersionInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	outputSuccess(info)
	return nil
}
