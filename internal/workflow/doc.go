// Package workflow ties the pipeline together: enumerate candidates,
// consult the tracking store, classify each file against policy, run
// the encode, replace the source, and record the outcome. Files are
// processed strictly one at a time; the encoder owns the GPU and the
// disks, and a second concurrent encode would only slow both down.
package workflow
