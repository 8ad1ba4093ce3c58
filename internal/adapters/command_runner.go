package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/ports"
	"python-buildpack/internal/shared"
	"python-buildpack/internal/types"
)

const (
	stderrTailBytes = 64 * 1024
	stderrTailLines = 40
)

// CommandRunnerAdapter runs subprocesses with an explicit environment.
// Streamed output goes through a credential redacting writer.
type CommandRunnerAdapter struct {
	Stdout io.Writer
	Stderr io.Writer
}

func NewCommandRunnerAdapter() CommandRunnerAdapter {
	return CommandRunnerAdapter{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (a CommandRunnerAdapter) Run(ctx context.Context, cmd types.Command, env types.Environment) (types.CommandResult, error) {
	if strings.TrimSpace(cmd.Name) == "" {
		return types.CommandResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("command name is empty")
	}
	stdoutSink := a.Stdout
	if stdoutSink == nil {
		stdoutSink = io.Discard
	}
	stderrSink := a.Stderr
	if stderrSink == nil {
		stderrSink = io.Discard
	}

	command := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	command.Dir = cmd.Dir
	command.Env = append(env.Pairs(), cmd.Env...)

	var captured bytes.Buffer
	streamOut := newRedactingWriter(stdoutSink)
	if cmd.Capture {
		command.Stdout = &captured
	} else {
		command.Stdout = streamOut
	}
	streamErr := newRedactingWriter(stderrSink)
	tail := &tailBuffer{limit: stderrTailBytes}
	command.Stderr = io.MultiWriter(streamErr, tail)

	log.Ctx(ctx).Debug().Str("command", filepath.Base(cmd.Name)).Strs("args", redactAll(cmd.Args)).Msg("running command")
	runErr := command.Run()
	_ = streamOut.Flush()
	_ = streamErr.Flush()

	result := types.CommandResult{
		Stdout:     captured.String(),
		StderrTail: shared.Tail(shared.RedactCredentials(tail.String()), stderrTailLines),
	}
	if runErr == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s was canceled", filepath.Base(cmd.Name))).
			WithCause(ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s exited with status %d", filepath.Base(cmd.Name), result.ExitCode)).
			WithCause(runErr)
	}
	result.ExitCode = -1
	return result, errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("failed to start %s", filepath.Base(cmd.Name))).
		WithCause(runErr)
}

func redactAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, shared.RedactCredentials(value))
	}
	return out
}

var _ ports.CommandRunnerPort = CommandRunnerAdapter{}
