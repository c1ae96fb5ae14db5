package worker

import (
	"time"

	"study_sync/internal/platform/logging"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// NewSupervisor returns the root supervisor for the serve command. Supervisor
// events (failures, backoff, timeouts) are logged through zerolog.
func NewSupervisor(log zerolog.Logger, shutdownTimeout time.Duration) *suture.Supervisor {
	logger := logging.Component(log, "supervisor")
	return suture.New("studysync", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}
