// Package testsupport holds helpers shared by framectl tests: temp-dir backed
// configs, stub executables on PATH, and synthetic frame images.
package testsupport
