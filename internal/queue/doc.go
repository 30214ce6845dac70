// Package queue persists rip jobs in SQLite and enforces the job state
// machine: pending -> reserving -> running -> completed or failed. The only
// sanctioned backward transition is reserving -> pending, used when a drive
// reservation is deferred.
package queue
