/*
Package scanner implements the periodic inventory scan.

Each cycle pages through the appliance inventory with an opaque cursor,
classifies every appliance with a staleness.Classifier against a single
instant captured at the start of the cycle, and offers the stale ones to the
remediation queue after every page.

A cycle ends when the inventory reports no further pages or returns a page
that cannot be continued: no data, no pagination info, or a next-page flag
without a cursor. A listing error aborts the cycle; the next tick starts
again from the first page. After FailureThreshold consecutive aborted cycles
the inventory health component is reported unhealthy.
*/
package scanner
