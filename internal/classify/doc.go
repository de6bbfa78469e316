// Package classify turns probe results into per-file processing
// plans. A file is compliant when every video and audio stream meets
// the configured policy; one failing stream forces a re-encode of the
// whole file. Text subtitle tracks are identified here too, along
// with the sidecar paths they extract to.
package classify
