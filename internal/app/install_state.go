package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"python-buildpack/internal/types"
)

var installTransitions = map[types.InstallState][]types.InstallState{
	types.InstallStateIdle:         {types.InstallStateDetected},
	types.InstallStateDetected:     {types.InstallStateToolAcquired},
	types.InstallStateToolAcquired: {types.InstallStateInstalling, types.InstallStateDone},
	types.InstallStateInstalling:   {types.InstallStateVerified},
	types.InstallStateVerified:     {types.InstallStateDone},
}

// installTracker follows one dependency installation through its states.
// A kept dependency layer goes straight from ToolAcquired to Done.
type installTracker struct {
	ctx     context.Context
	manager types.PackageManager
	state   types.InstallState
}

func newInstallTracker(ctx context.Context) *installTracker {
	return &installTracker{ctx: ctx, state: types.InstallStateIdle}
}

func (t *installTracker) State() types.InstallState {
	return t.state
}

func (t *installTracker) Advance(next types.InstallState) error {
	for _, allowed := range installTransitions[t.state] {
		if allowed != next {
			continue
		}
		log.Ctx(t.ctx).Debug().
			Str("manager", string(t.manager)).
			Str("from", string(t.state)).
			Str("to", string(next)).
			Msg("install state")
		t.state = next
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("invalid install state transition from %s to %s", t.state, next))
}

// Fail is allowed from every state except Done.
func (t *installTracker) Fail(err error) {
	if t.state == types.InstallStateDone || t.state == types.InstallStateFailed {
		return
	}
	log.Ctx(t.ctx).Debug().
		Str("manager", string(t.manager)).
		Str("from", string(t.state)).
		Err(err).
		Msg("install failed")
	t.state = types.InstallStateFailed
}
