// Package refresh coordinates credential renewal.
//
// Coordinator collapses concurrent refresh requests into one in-flight
// operation. Scheduler renews a credential shortly before it expires and
// rate-limits attempts so a stuck expiry cannot cause a refresh storm.
package refresh
