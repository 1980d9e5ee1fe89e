/*
Package log builds the structured zerolog loggers used across potato.

There is no package-level logger. The command layer builds one logger from
the configuration and hands it (or a child of it) to every component, so two
components in the same process can log at different levels or to different
writers, and tests can capture output in a buffer.

# Usage

	logger := log.New(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	ingestLog := log.WithRunID(log.WithComponent(logger, "ingest"), runID)
	ingestLog.Info().Int("chunk", 1).Msg("Chunk written")

Console output (the default) is meant for operators running the loader by
hand; JSON output is meant for log shippers.

# Fields

	component  the package emitting the entry (ingest, api, storage, ...)
	run_id     one ingest or resync run, so that a restarted run can be told
	           apart from the one it resumes
*/
package log
