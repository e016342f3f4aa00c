// Package poller runs one invocation of the sales poll.
//
// A single Poller type serves the regular, manual and catchup variants; a Mode
// value selects the window strategy and the watermark policy. Invocations
// share no in-process state. Everything that must hold across overlapping
// runs (insert-once estimates, unique claims, the monotonic watermark) is
// enforced by the stores in Deps.
//
// Per event the poller short-circuits on the recent-id cache, an existing
// estimate or an existing claim. Otherwise it enriches the event, classifies
// it, writes the estimate and runs the ledger protocol for every qualifying
// celebration type. Per-event failures land in the run's capped error list;
// only an upstream fetch failure or an unavailable store aborts the run.
package poller
