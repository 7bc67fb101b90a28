package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
)

// DefaultAgentPath is where the agent binary lives on SSH-only ships.
const DefaultAgentPath = "~/.flotilla/flotilla-agent"

const (
	defaultCommandTimeout = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// =============================================================================
// Agent Backend - flotilla-agent over SSH
// =============================================================================

// AgentBackend reaches a ship's container runtime by executing the
// flotilla-agent binary over SSH. The agent binary must be deployed to
// the ship; commands exchange JSON on stdin/stdout.
type AgentBackend struct {
	ship      *environment.Ship
	signer    ssh.Signer
	agentPath string
	timeout   time.Duration
	sshClient *ssh.Client
	mu        sync.Mutex // protects sshClient
}

// NewAgentBackend creates a backend that drives the agent binary at
// agentPath on the ship. The ship's SSH key is read and parsed eagerly;
// the connection itself is established on first use.
func NewAgentBackend(ship *environment.Ship, agentPath string) (*AgentBackend, error) {
	keyData, err := os.ReadFile(ship.SSHKey)
	if err != nil {
		return nil, NewBackendError("NewAgentBackend", ship.Name, "", fmt.Sprintf("read SSH key: %v", err), err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, NewBackendError("NewAgentBackend", ship.Name, "", fmt.Sprintf("parse SSH key: %v", err), err)
	}

	if agentPath == "" {
		agentPath = DefaultAgentPath
	}
	timeout := ship.Timeout
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}

	return &AgentBackend{
		ship:      ship,
		signer:    signer,
		agentPath: agentPath,
		timeout:   timeout,
	}, nil
}

// connect establishes the SSH connection if not already connected.
func (b *AgentBackend) connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sshClient != nil {
		// Check if connection is still alive
		_, _, err := b.sshClient.SendRequest("keepalive@flotilla", true, nil)
		if err == nil {
			return nil
		}
		// Connection dead, reconnect
		b.sshClient.Close()
		b.sshClient = nil
	}

	config := &ssh.ClientConfig{
		User:            b.ship.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(b.signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: store and verify host keys
		Timeout:         defaultConnectTimeout,
	}

	client, err := ssh.Dial("tcp", b.ship.SSHAddress(), config)
	if err != nil {
		return NewBackendError("connect", b.ship.Name, "", fmt.Sprintf("SSH dial %s: %v", b.ship.SSHAddress(), err), ErrConnectionFailed)
	}

	b.sshClient = client
	return nil
}

// Close closes the SSH connection.
func (b *AgentBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sshClient != nil {
		err := b.sshClient.Close()
		b.sshClient = nil
		return err
	}
	return nil
}

// =============================================================================
// Agent Execution
// =============================================================================

// execAgent runs one agent command over SSH and returns its response.
func (b *AgentBackend) execAgent(ctx context.Context, command string, args []string, input any) (*agent.Response, error) {
	if err := b.connect(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	session, err := b.sshClient.NewSession()
	b.mu.Unlock()
	if err != nil {
		return nil, NewBackendError(command, b.ship.Name, "", fmt.Sprintf("create SSH session: %v", err), ErrConnectionFailed)
	}
	defer session.Close()

	cmdParts := append([]string{b.agentPath, command}, args...)
	cmdStr := strings.Join(cmdParts, " ")

	if input != nil {
		inputJSON, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("marshal input: %w", err)
		}
		session.Stdin = bytes.NewReader(inputJSON)
	}

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmdStr)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.timeout):
		return nil, NewBackendError(command, b.ship.Name, "", fmt.Sprintf("command timeout after %v", b.timeout), ErrConnectionFailed)
	case err := <-done:
		// The agent writes a JSON error envelope even when it exits
		// non-zero, so try parsing before reporting the exec error.
		resp, parseErr := agent.ParseResponse(stdout.Bytes())
		if parseErr != nil {
			if err != nil {
				return nil, NewBackendError(command, b.ship.Name, "", fmt.Sprintf("command failed: %v, output: %s", err, stdout.String()), err)
			}
			return nil, parseErr
		}
		return resp, nil
	}
}

// translateError maps an agent error code onto a backend error.
func (b *AgentBackend) translateError(name string, errInfo *agent.ErrorInfo) error {
	var sentinel error
	switch errInfo.Code {
	case agent.ErrCodeNotFound:
		sentinel = ErrContainerNotFound
	case agent.ErrCodeAlreadyExists:
		sentinel = ErrContainerAlreadyExists
	case agent.ErrCodeNotRunning:
		sentinel = ErrContainerNotRunning
	case agent.ErrCodeAlreadyRunning:
		sentinel = ErrContainerAlreadyRunning
	case agent.ErrCodePortConflict:
		sentinel = ErrPortAlreadyAllocated
	case agent.ErrCodePullFailed:
		sentinel = ErrImagePullFailed
	case agent.ErrCodeImageNotFound:
		sentinel = ErrImageNotFound
	case agent.ErrCodeConnectionFailed:
		sentinel = ErrConnectionFailed
	}
	return NewBackendError(errInfo.Command, b.ship.Name, name, errInfo.Message, sentinel)
}

// =============================================================================
// Backend Operations
// =============================================================================

// Ping checks the agent can reach its local daemon.
func (b *AgentBackend) Ping(ctx context.Context) error {
	resp, err := b.execAgent(ctx, agent.CmdPing, nil, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError("", resp.Error)
	}
	return nil
}

// AgentVersion reports the deployed agent binary's version.
func (b *AgentBackend) AgentVersion(ctx context.Context) (string, error) {
	resp, err := b.execAgent(ctx, agent.CmdVersion, nil, nil)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", b.translateError("", resp.Error)
	}
	var info agent.VersionInfo
	if err := resp.UnmarshalData(&info); err != nil {
		return "", fmt.Errorf("unmarshal result: %w", err)
	}
	return info.Version, nil
}

// InspectContainer returns the state of a named container.
func (b *AgentBackend) InspectContainer(ctx context.Context, name string) (*agent.ContainerState, error) {
	resp, err := b.execAgent(ctx, agent.CmdInspect, []string{name}, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, b.translateError(name, resp.Error)
	}
	var state agent.ContainerState
	if err := resp.UnmarshalData(&state); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &state, nil
}

// CreateContainer creates a container from the spec.
func (b *AgentBackend) CreateContainer(ctx context.Context, spec agent.ContainerSpec) (string, error) {
	resp, err := b.execAgent(ctx, agent.CmdCreateContainer, nil, spec)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", b.translateError(spec.Name, resp.Error)
	}
	var result agent.CreateResult
	if err := resp.UnmarshalData(&result); err != nil {
		return "", fmt.Errorf("unmarshal result: %w", err)
	}
	return result.ID, nil
}

// StartContainer starts a created or stopped container.
func (b *AgentBackend) StartContainer(ctx context.Context, name string) error {
	resp, err := b.execAgent(ctx, agent.CmdStartContainer, []string{name}, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError(name, resp.Error)
	}
	return nil
}

// StopContainer stops a running container.
func (b *AgentBackend) StopContainer(ctx context.Context, name string, timeout time.Duration) error {
	resp, err := b.execAgent(ctx, agent.CmdStopContainer, []string{name}, agent.StopRequest{Timeout: timeout})
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError(name, resp.Error)
	}
	return nil
}

// KillContainer sends SIGKILL.
func (b *AgentBackend) KillContainer(ctx context.Context, name string) error {
	resp, err := b.execAgent(ctx, agent.CmdKillContainer, []string{name}, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError(name, resp.Error)
	}
	return nil
}

// RemoveContainer deletes a stopped container.
func (b *AgentBackend) RemoveContainer(ctx context.Context, name string) error {
	resp, err := b.execAgent(ctx, agent.CmdRemoveContainer, []string{name}, nil)
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError(name, resp.Error)
	}
	return nil
}

// PullImage refreshes an image from its registry.
func (b *AgentBackend) PullImage(ctx context.Context, image string, auth string) error {
	resp, err := b.execAgent(ctx, agent.CmdPullImage, nil, agent.PullRequest{Image: image, Auth: auth})
	if err != nil {
		return err
	}
	if !resp.Success {
		return b.translateError("", resp.Error)
	}
	return nil
}

// InspectImage returns the ID of a locally present image.
func (b *AgentBackend) InspectImage(ctx context.Context, image string) (string, error) {
	resp, err := b.execAgent(ctx, agent.CmdInspectImage, []string{image}, nil)
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", b.translateError("", resp.Error)
	}
	var info agent.ImageInfo
	if err := resp.UnmarshalData(&info); err != nil {
		return "", fmt.Errorf("unmarshal result: %w", err)
	}
	return info.ID, nil
}

// ContainerLogs dumps a container's log. Follow is not supported over
// the agent transport and is silently downgraded to a one-shot dump.
func (b *AgentBackend) ContainerLogs(ctx context.Context, name string, opts agent.LogsRequest) (io.ReadCloser, error) {
	opts.Follow = false
	resp, err := b.execAgent(ctx, agent.CmdContainerLogs, []string{name}, opts)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, b.translateError(name, resp.Error)
	}
	var result agent.LogsResult
	if err := resp.UnmarshalData(&result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return io.NopCloser(strings.NewReader(result.Logs)), nil
}
