// Package motion overrides the model's noise schedule with the one a motion
// module was trained on, and restores the original afterwards.
package motion
