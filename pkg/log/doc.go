/*
Package log provides structured logging for ecomesh built on zerolog.

Init configures the global logger once at process start; components then
derive child loggers carrying stable identifying fields:

	logger := log.WithComponent("discovery")
	logger.Info().Int("instances", n).Msg("discovery pass complete")

Console output (human-readable, colored) is the default; JSON output is
available for log aggregation pipelines via Config.JSONOutput.
*/
package log
