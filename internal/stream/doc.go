// Package stream provides stream session management and lifecycle handling.
// Each session binds one ingest stream to one segmentation engine fed from a
// dedicated goroutine, collects engine events, and dispatches validated
// speech segments downstream. Inactive sessions are cleaned up on a
// configurable timeout.
package stream
