// Package imageops converts between images and conditioning tensors and
// implements the geometric and morphological helpers the control pipeline
// needs: detect-map fitting for the three resize modes, pixel-perfect
// preprocessor resolution, mask dilation and box blur, and batch stacking with
// classifier-free-guidance duplication.
//
// Tensors are float32 in [0,1], channel-first. Single images are [1,C,H,W];
// stacks are [N,C,H,W]; generated frames are [C,H,W].
package imageops
