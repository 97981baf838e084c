package dependencies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhenzou/executors"

	"github.com/looplj/webproxy/internal/log"
)

// A refresh slower than this is cancelled; the next cron tick starts a fresh one.
const refreshTimeout = 2 * time.Minute

var ErrRefreshBacklog = errors.New("proxy refresh backlog is full")

func logJobError(runnable executors.Runnable, err error) {
	log.Error(context.Background(), "scheduled proxy job failed",
		log.String("job", fmt.Sprintf("%T", runnable)),
		log.Cause(err))
}

// rejectRefresh drops a tick that arrives while earlier refreshes are still queued.
type rejectRefresh struct{}

func (rejectRefresh) RejectExecution(runnable executors.Runnable, _ executors.Executor) error {
	log.Warn(context.Background(), "drop proxy refresh, previous runs still pending",
		log.String("job", fmt.Sprintf("%T", runnable)))

	return ErrRefreshBacklog
}

// NewExecutors runs the cron driven discovery refresh. Refreshes never overlap.
func NewExecutors(logger *log.Logger) executors.ScheduledExecutor {
	return executors.NewPoolScheduleExecutor(
		executors.WithMaxConcurrent(1),
		executors.WithMaxBlockingTasks(1),
		executors.WithExecuteTimeout(refreshTimeout),
		executors.WithErrorHandler(executors.ErrorHandlerFunc(logJobError)),
		executors.WithRejectionHandler(rejectRefresh{}),
		executors.WithLogger(logger.AsSlog()),
	)
}
