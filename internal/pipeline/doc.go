// Package pipeline is the control unit processor. For every enabled unit of a
// generation call it loads the control model, acquires and preprocesses each
// frame with a seeded random source, classifies the model type, stacks the
// conditioning for the base and high-res passes, and builds the unit's
// forward descriptor and post-processors.
//
// Configuration problems (unknown preprocessor, unresolvable model type,
// missing inputs) abort the call. A seed that cannot be derived only degrades
// reproducibility and is logged.
package pipeline
