// Package preprocess hosts the preprocessor registry and the seeded random
// source that keeps stochastic preprocessors reproducible.
//
// Each registered preprocessor carries a Family resolved once, at
// registration, from its name. Pipeline code branches on the Family
// (model-free reference, inpaint blending, recolor, lama encoding) instead of
// re-matching name substrings per call. Hosts register their neural
// preprocessors next to the simple image operations installed by Default.
package preprocess
