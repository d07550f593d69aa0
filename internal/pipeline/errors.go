package pipeline

import (
	"fmt"

	"github.com/kiko1842/vaultwire/internal/model"
)

// AbortError ends a run that failed outside of a deferral.
type AbortError struct {
	Stage         Stage
	LastCompleted Stage
	Components    []*model.DeployedComponent
	Cause         error
}

func (e *AbortError) Error() string {
	last := string(e.LastCompleted)
	if last == "" {
		last = "none"
	}
	return fmt.Sprintf("run aborted in stage %s (last completed: %s, components deployed: %d): %v",
		e.Stage, last, len(e.Components), e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }
