// Package inject attaches forward descriptors to the denoising network for the
// duration of one generation call.
//
// Residual model types go through the network's generic hook. IP-Adapter and
// ControlLite models attach through their own hooks, and control LoRA weights
// are bound into the network before the pass. Everything attached is recorded
// so Detach, or a failed Attach, undoes it in reverse order.
package inject
