package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/flotilla-orch/flotilla/internal/core/agent"
	"github.com/flotilla-orch/flotilla/internal/core/environment"
	"github.com/flotilla-orch/flotilla/internal/shell/docker"
)

// maxLogBytes bounds a one-shot log dump so a chatty container cannot
// blow up the SSH response.
const maxLogBytes = 64 * 1024

// dispatch routes the command to the appropriate handler.
func dispatch(cmd string, args []string) error {
	switch cmd {
	case agent.CmdVersion:
		return versionCmd()
	case agent.CmdPing:
		return pingCmd()
	case agent.CmdCreateContainer:
		return createContainerCmd()
	case agent.CmdStartContainer:
		return startContainerCmd(args)
	case agent.CmdStopContainer:
		return stopContainerCmd(args)
	case agent.CmdKillContainer:
		return killContainerCmd(args)
	case agent.CmdRemoveContainer:
		return removeContainerCmd(args)
	case agent.CmdInspect:
		return inspectContainerCmd(args)
	case agent.CmdPullImage:
		return pullImageCmd()
	case agent.CmdInspectImage:
		return inspectImageCmd(args)
	case agent.CmdContainerLogs:
		return containerLogsCmd(args)
	default:
		outputError(cmd, agent.ErrCodeInvalidInput, "unknown command: "+cmd)
		return errUnknownCommand
	}
}

// errUnknownCommand is returned for unknown commands.
var errUnknownCommand = errors.New("unknown command")

// localBackend opens the engine backend against the ship's own daemon.
func localBackend(command string) (docker.Backend, error) {
	backend, err := docker.NewEngineBackend(&environment.Ship{Name: "local"})
	if err != nil {
		outputError(command, agent.ErrCodeConnectionFailed, err.Error())
		return nil, err
	}
	return backend, nil
}

// fail writes the backend error to stdout with its protocol code.
func fail(command string, err error) error {
	outputError(command, errorCode(err), err.Error())
	return err
}

// errorCode maps backend sentinels onto protocol error codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, docker.ErrContainerNotFound):
		return agent.ErrCodeNotFound
	case errors.Is(err, docker.ErrContainerAlreadyExists):
		return agent.ErrCodeAlreadyExists
	case errors.Is(err, docker.ErrContainerNotRunning):
		return agent.ErrCodeNotRunning
	case errors.Is(err, docker.ErrContainerAlreadyRunning):
		return agent.ErrCodeAlreadyRunning
	case errors.Is(err, docker.ErrPortAlreadyAllocated):
		return agent.ErrCodePortConflict
	case errors.Is(err, docker.ErrImageNotFound):
		return agent.ErrCodeImageNotFound
	case errors.Is(err, docker.ErrImagePullFailed):
		return agent.ErrCodePullFailed
	case errors.Is(err, docker.ErrConnectionFailed):
		return agent.ErrCodeConnectionFailed
	default:
		return agent.ErrCodeInternal
	}
}

// requireArg enforces one positional argument.
func requireArg(command string, args []string) (string, error) {
	if len(args) < 1 {
		err := errors.New("missing argument")
		outputError(command, agent.ErrCodeInvalidInput, command+" needs an argument")
		return "", err
	}
	return args[0], nil
}

// pingCmd handles the "ping" command.
func pingCmd() error {
	backend, err := localBackend(agent.CmdPing)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.Ping(context.Background()); err != nil {
		return fail(agent.CmdPing, err)
	}
	outputSuccess(nil)
	return nil
}

// createContainerCmd handles "create-container": ContainerSpec JSON on
// stdin.
func createContainerCmd() error {
	var spec agent.ContainerSpec
	if err := json.NewDecoder(os.Stdin).Decode(&spec); err != nil {
		outputError(agent.CmdCreateContainer, agent.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return err
	}

	backend, err := localBackend(agent.CmdCreateContainer)
	if err != nil {
		return err
	}
	defer backend.Close()

	id, err := backend.CreateContainer(context.Background(), spec)
	if err != nil {
		return fail(agent.CmdCreateContainer, err)
	}
	outputSuccess(agent.CreateResult{ID: id})
	return nil
}

// startContainerCmd handles "start-container <name>".
func startContainerCmd(args []string) error {
	name, err := requireArg(agent.CmdStartContainer, args)
	if err != nil {
		return err
	}

	backend, err := localBackend(agent.CmdStartContainer)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.StartContainer(context.Background(), name); err != nil {
		return fail(agent.CmdStartContainer, err)
	}
	outputSuccess(nil)
	return nil
}

// stopContainerCmd handles "stop-container <name>": StopRequest JSON on
// stdin.
func stopContainerCmd(args []string) error {
	name, err := requireArg(agent.CmdStopContainer, args)
	if err != nil {
		return err
	}

	var req agent.StopRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil && err != io.EOF {
		outputError(agent.CmdStopContainer, agent.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return err
	}

	backend, err := localBackend(agent.CmdStopContainer)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.StopContainer(context.Background(), name, req.Timeout); err != nil {
		return fail(agent.CmdStopContainer, err)
	}
	outputSuccess(nil)
	return nil
}

// killContainerCmd handles "kill-container <name>".
func killContainerCmd(args []string) error {
	name, err := requireArg(agent.CmdKillContainer, args)
	if err != nil {
		return err
	}

	backend, err := localBackend(agent.CmdKillContainer)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.KillContainer(context.Background(), name); err != nil {
		return fail(agent.CmdKillContainer, err)
	}
	outputSuccess(nil)
	return nil
}

// removeContainerCmd handles "remove-container <name>".
func removeContainerCmd(args []string) error {
	name, err := requireArg(agent.CmdRemoveContainer, args)
	if err != nil {
		return err
	}

	backend, err := localBackend(agent.CmdRemoveContainer)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.RemoveContainer(context.Background(), name); err != nil {
		return fail(agent.CmdRemoveContainer, err)
	}
	outputSuccess(nil)
	return nil
}

// inspectContainerCmd handles "inspect-container <name>".
func inspectContainerCmd(args []string) error {
	name, err := requireArg(agent.CmdInspect, args)
	if err != nil {
		return err
	}

	backend, err := localBackend(agent.CmdInspect)
	if err != nil {
		return err
	}
	defer backend.Close()

	state, err := backend.InspectContainer(context.Background(), name)
	if err != nil {
		return fail(agent.CmdInspect, err)
	}
	outputSuccess(state)
	return nil
}

// pullImageCmd handles "pull-image": PullRequest JSON on stdin.
func pullImageCmd() error {
	var req agent.PullRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		outputError(agent.CmdPullImage, agent.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return err
	}

	backend, err := localBackend(agent.CmdPullImage)
	if err != nil {
		return err
	}
	defer backend.Close()

	if err := backend.PullImage(context.Background(), req.Image, req.Auth); err != nil {
		return fail(agent.CmdPullImage, err)
	}
	outputSuccess(nil)
	return nil
}

// inspectImageCmd handles "inspect-image <image>".
func inspectImageCmd(args []string) error {
	image, err := requireArg(agent.CmdInspectImage, args)
	if err != nil {
		return err
	}

	backend, err := localBackend(agent.CmdInspectImage)
	if err != nil {
		return err
	}
	defer backend.Close()

	id, err := backend.InspectImage(context.Background(), image)
	if err != nil {
		return fail(agent.CmdInspectImage, err)
	}
	outputSuccess(agent.ImageInfo{ID: id})
	return nil
}

// containerLogsCmd handles "container-logs <name>": LogsRequest JSON on
// stdin.
func containerLogsCmd(args []string) error {
	name, err := requireArg(agent.CmdContainerLogs, args)
	if err != nil {
		return err
	}

	var req agent.LogsRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil && err != io.EOF {
		outputError(agent.CmdContainerLogs, agent.ErrCodeInvalidInput, "invalid JSON input: "+err.Error())
		return err
	}
	req.Follow = false // one-shot over SSH exec

	backend, err := localBackend(agent.CmdContainerLogs)
	if err != nil {
		return err
	}
	defer backend.Close()

	reader, err := backend.ContainerLogs(context.Background(), name, req)
	if err != nil {
		return fail(agent.CmdContainerLogs, err)
	}
	defer reader.Close()

	logs, err := io.ReadAll(io.LimitReader(reader, maxLogBytes))
	if err != nil {
		return fail(agent.CmdContainerLogs, err)
	}
	outputSuccess(agent.LogsResult{Logs: string(logs)})
	return nil
}
