// Package executor drains the job queue. One worker runs per drive at a
// time: it reserves the drive, rips the requested titles sequentially, and
// releases the drive on every exit path.
package executor
