// Package votingengine implements the mills-weighted voting and quorum
// engine inside the governance context.
//
// The module owns question lifecycle (scheduled, pre-voting, live floor,
// closed), ballot reconciliation across pre-vote/live/proxy sources into one
// effective ballot per voter, mills-weighted tally computation, and the
// cached result feed consumed by dashboards and the kiosk. It keeps business
// rules in application/domain layers and isolates infrastructure concerns
// behind ports and adapters.
package votingengine
