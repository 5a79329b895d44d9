// Package task provides durable background processing for scope scans.
//
// Tasks are persisted before they are enqueued, so accepted work survives a
// crash: on startup the runner requeues pending tasks and resets tasks that
// were interrupted mid-processing. A periodic monitor catches tasks stuck in
// the processing state after a worker dies without recording an outcome.
//
// The package also hosts the event handler that converts scan request events
// into tasks, keeping the API layer free of any task-machinery knowledge.
package task
