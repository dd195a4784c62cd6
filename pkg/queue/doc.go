/*
Package queue implements the remediation queue shared by the inventory
scanner (producer) and the remediation dispatcher (consumer).

Two structures make up the queue:

	pending set   appliance ids currently claimed; atomic add-if-absent
	backlog       claimed appliances awaiting dispatch; FIFO, bounded at Qmax

An appliance moves through them like this:

	Offer ──► claimed + queued ──PollOne──► claimed (executing) ──Release──► free
	   │
	   └── already claimed: skipped     backlog full: claim undone, dropped

Keeping the claim separate from the backlog is what lets a dispatched
appliance leave the backlog while still blocking its rediscovery by the next
scan cycle. The pending set is a sync.Map (LoadOrStore is the dedup check) and
the backlog is a buffered channel whose capacity is Qmax, so admission and
polling are both non-blocking and need no caller-side locking.

Offer reports nothing to its caller; admissions, duplicates and drops are
visible through sentinel_queue_offers_total.
*/
package queue
