// Package agent defines the protocol spoken between flotilla and the
// flotilla-agent binary on ships that do not expose their Docker daemon.
//
// The agent is deployed to the ship and reached via SSH exec; commands
// exchange JSON on stdin/stdout. This package contains pure types with
// no I/O.
package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current agent protocol version.
// Bump MAJOR for breaking changes, MINOR for new commands, PATCH for fixes.
const Version = "1.0.0"

// =============================================================================
// Commands
// =============================================================================

// Command names understood by the agent binary.
const (
	CmdVersion         = "version"
	CmdPing            = "ping"
	CmdInspect         = "inspect-container"
	CmdCreateContainer = "create-container"
	CmdStartContainer  = "start-container"
	CmdStopContainer   = "stop-container"
	CmdKillContainer   = "kill-container"
	CmdRemoveContainer = "remove-container"
	CmdPullImage       = "pull-image"
	CmdInspectImage    = "inspect-image"
	CmdContainerLogs   = "container-logs"
)

// =============================================================================
// Response Envelope
// =============================================================================

// Response is the standard envelope for all agent command responses.
// Every command writes this structure as JSON to stdout.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains error details when Success is false.
type ErrorInfo struct {
	Command string `json:"command"`        // Command that failed
	Code    string `json:"code,omitempty"` // Error code (e.g. "not_found")
	Message string `json:"message"`        // Human-readable error message
}

// NewSuccessResponse creates a successful response with data.
func NewSuccessResponse(data interface{}) (*Response, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		raw = encoded
	}
	return &Response{Success: true, Data: raw}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(command, code, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Command: command,
			Code:    code,
			Message: message,
		},
	}
}

// ParseResponse parses a JSON response from the agent.
func ParseResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// UnmarshalData unmarshals the response data into the target type.
func (r *Response) UnmarshalData(target interface{}) error {
	if r.Data == nil {
		return nil
	}
	return json.Unmarshal(r.Data, target)
}

// =============================================================================
// Error Codes
// =============================================================================

// Standard error codes for agent responses.
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeNotRunning       = "not_running"
	ErrCodeAlreadyRunning   = "already_running"
	ErrCodePortConflict     = "port_conflict"
	ErrCodeImageNotFound    = "image_not_found"
	ErrCodePullFailed       = "pull_failed"
	ErrCodeConnectionFailed = "connection_failed"
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeInternal         = "internal"
)

// =============================================================================
// Payload Types
// =============================================================================

// VersionInfo is the version command's response data.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// ContainerSpec is the create-container request, read from stdin.
type ContainerSpec struct {
	Name        string            `json:"name"`
	Image       string            `json:"image"`
	Cmd         []string          `json:"cmd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Ports       []PortBinding     `json:"ports,omitempty"`
	Binds       []VolumeBind      `json:"binds,omitempty"`
	VolumesFrom []string          `json:"volumes_from,omitempty"`
	Memory      int64             `json:"memory,omitempty"`
	MemorySwap  int64             `json:"memory_swap,omitempty"`
	CPU         float64           `json:"cpu,omitempty"`
}

// PortBinding is one published port.
type PortBinding struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

// VolumeBind is one host path mount.
type VolumeBind struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

// ContainerState is the inspect-container response data.
type ContainerState struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Image      string            `json:"image"`
	ImageID    string            `json:"image_id,omitempty"`
	Status     string            `json:"status"` // created, running, exited, ...
	Running    bool              `json:"running"`
	ExitCode   int               `json:"exit_code"`
	StartedAt  time.Time         `json:"started_at,omitzero"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	Ports      []PortBinding     `json:"ports,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// StopRequest parameterizes stop-container.
type StopRequest struct {
	Timeout time.Duration `json:"timeout,omitempty"`
}

// PullRequest parameterizes pull-image. Auth carries the registry
// credentials pre-encoded for the daemon's X-Registry-Auth header.
type PullRequest struct {
	Image string `json:"image"`
	Auth  string `json:"auth,omitempty"`
}

// LogsRequest parameterizes container-logs. Follow is ignored by the
// agent transport, which cannot hold a stream open across exec calls.
type LogsRequest struct {
	Follow bool `json:"follow,omitempty"`
	Tail   int  `json:"tail,omitempty"`
}

// ImageInfo is the inspect-image response data.
type ImageInfo struct {
	ID string `json:"id"`
}

// LogsResult is the container-logs response data.
type LogsResult struct {
	Logs string `json:"logs"`
}

// CreateResult is the create-container response data.
type CreateResult struct {
	ID string `json:"id"`
}
