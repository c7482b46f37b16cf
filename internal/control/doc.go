// Package control defines the data model shared by the frame control pipeline.
//
// A Unit describes one conditioning source (edge map, depth, pose, reference
// image, style or IP embedding) as configured by the caller. VideoParams
// carries the video-wide knobs that reconcile frame counts across units. A
// ForwardDescriptor is the normalized, model-ready form of a Unit produced once
// per generation call and consumed by the injection hook.
//
// The typed errors in this package classify configuration failures; all of
// them match services.ErrConfiguration under errors.Is.
package control
