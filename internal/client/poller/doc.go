// Package poller follows conversion jobs on the server and reconciles the
// queue with what it reports.
package poller
