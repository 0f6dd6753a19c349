// Package volume provides the typed memory containers shared by the
// processing stages of the darkfield pipeline.
//
// A Container owns a flat buffer of voxel samples and knows where that
// buffer currently lives: host memory, device memory, or both. Containers
// are reference counted so several stages can share one upstream volume;
// a stage never mutates an input container, it produces a fresh one.
// Host<->device migration is always an explicit, named operation on the
// execution layer - there are no silent copies.
package volume
