/*
Package log provides structured logging for Sentinel using zerolog.

A single global Logger is configured once by Init from the service
configuration. Components derive child loggers with WithComponent so every
line carries a "component" field (scanner, queue, dispatcher, pool,
processor, client, api, storage), and the remediation pipeline further tags
lines with WithApplianceID.

# Levels

	debug  per-appliance decisions (classified stale, polled, deduplicated)
	info   cycle summaries and successful remote steps
	warn   dropped or rejected work, unknown releases, vanished appliances
	error  aborted scan cycles and failed workflow steps

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("scanner")
	logger.Info().
		Int("total", result.TotalSeen).
		Int("stale", result.StaleFound).
		Msg("Scan cycle completed")

Console output (human readable) is used unless JSONOutput is set.
*/
package log
