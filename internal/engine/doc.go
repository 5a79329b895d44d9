// Package engine implements the conflict detection pipeline: fact-set
// snapshotting, the three detectors, fingerprint deduplication, resolution
// candidate generation with confidence ranking, and the notification
// guarantor. The Scanner orchestrates one scope's scan end to end.
package engine
