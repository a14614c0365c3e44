// Package parallel runs batches of task operations with bounded concurrency.
//
// WorkerPool limits how many jobs run at once, optionally cancels the rest
// after the first failure, and reports one Result per submitted task id,
// including jobs that never ran because the pool was cancelled.
package parallel
