/*
Package log provides structured logging for the scheduler using zerolog.

It wraps zerolog to give every package a component-scoped child logger,
configurable level and output, and child-logger helpers scoped to a job
or a task. Messages are written through the global Logger or one of
those child loggers; there are no package-level message helpers.

# Usage

Initializing the logger, typically once in cmd/qscheduler's root command:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	schedulerLog := log.WithComponent("planner")
	schedulerLog.Info().Msg("cutting plan into stages")

	taskLog := log.WithTaskID(task.PartitionID.String())
	taskLog.Error().Err(err).Msg("task failed")

# Output

JSON format (production):

	{"level":"info","component":"reconciler","time":"2024-10-13T10:30:00Z","message":"job completed"}

Console format (development), a human-readable line via zerolog.ConsoleWriter.
*/
package log
