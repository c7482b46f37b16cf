// Package postprocess blends generated frames against per-unit control data
// after denoising.
//
// Each processor is built once per unit from the unit's final stacked
// conditioning and holds its own copy of the per-frame reference data, so a
// chain assembled in a loop over units never observes a later unit's data.
// A frame whose geometry does not match the precomputed data is logged and
// returned unchanged.
package postprocess
