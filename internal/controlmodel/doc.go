// Package controlmodel loads control models through the host, keeps recently
// used ones in a bounded cache, and classifies each model's ModelType from its
// architecture tag.
//
// The cache is keyed by model identifier and emptied whenever the host switches
// checkpoints, since control models are bound to the base network they were
// loaded against.
package controlmodel
