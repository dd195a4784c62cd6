/*
Package types defines the core data structures shared across Sentinel.

An Appliance is the immutable snapshot returned by the inventory API for one
managed unit. An Operation is the record written after a remote drain or
remediate call succeeds. The remaining types mirror the inventory API's wire
format (pages, drain and remediate responses) so the client, scanner and
remediation pipeline agree on one vocabulary.
*/
package types
