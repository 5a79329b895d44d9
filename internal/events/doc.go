// Package events decouples the components that request scope scans from the
// background machinery that runs them.
//
// The API layer and any scheduler emit ScanRequestEvent values through an
// EventEmitter without knowing which handlers consume them; the task layer
// registers an EventHandler that turns requests into persisted background
// tasks. Keeping this indirection avoids a dependency cycle between the
// service and task packages.
package events
