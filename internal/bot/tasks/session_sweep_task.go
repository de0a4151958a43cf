package tasks

import "context"

// newSessionSweepTask creates the scheduled task that drops expired wizard
// sessions. Sessions also expire lazily on access; the sweep just keeps the
// store from accumulating abandoned ones.
func newSessionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_sweep")

	return func(ctx context.Context) error {
		removed := deps.Sessions.SweepExpired()
		if removed > 0 {
			log.InfoContext(ctx, "Swept expired wizard sessions", "removed", removed)
		}
		return nil
	}
}
