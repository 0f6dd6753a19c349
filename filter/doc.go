// Package filter provides the dark-field suppression stage of the
// darkfield pipeline: voxels whose magnitude falls below a threshold
// are zeroed, everything else passes through with a saturating
// conversion to the output sample type.
//
// The stage is a single-shot driver over an execution backend. On the
// GPU backend it is fully asynchronous: Process returns as soon as the
// kernel is enqueued, and the output container's contents are defined
// only after its bound queue has drained. The orchestrating pipeline,
// not the stage, decides when to synchronize.
package filter
