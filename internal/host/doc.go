// Package host declares the contracts framectl consumes from the image
// generation host and its control extension.
//
// The host owns the sampler, the networks, and the per-batch orchestration
// loop. framectl never reaches into those directly: it wraps the three entry
// points exposed through HookPoints and calls back through the Services
// interfaces. FileInputs is a default InputChooser that reads frames from
// disk for hosts that do not supply their own.
package host
