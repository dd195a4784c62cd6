/*
Package events distributes pipeline events to in-process subscribers.

The Broker fans out each published Event to every subscriber channel. The
scanner and the remediation workers publish scan results and per-appliance
outcomes; the HTTP API streams them to operators on /api/v1/events.

Publish never blocks the caller. Events that do not fit in the broker buffer,
or in a slow subscriber's buffer, are dropped and counted in
sentinel_events_dropped_total.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.ApplianceID)
	}
*/
package events
