/*
Package remediation executes remediation for stale appliances.

Three pieces cooperate:

  - Dispatcher polls the remediation queue on a fast tick and submits at most
    one appliance per tick to the Pool. When the Pool rejects it, the
    dispatcher releases the claim and offers the appliance again, so it goes
    to the back of the queue and stays eligible.
  - Pool is a fixed set of workers reading from a bounded task channel.
    Submit never blocks. Stop lets queued and running tasks finish for a
    grace period, then cancels them.
  - Processor drains an appliance and remediates it only after a successful
    drain. Each successful step is saved as an operation record. The claim is
    released when the attempt ends, whatever the outcome.

A 404 from the appliance API means the appliance was removed from the
inventory; the attempt ends as OutcomeVanished and is not treated as an error.
*/
package remediation
