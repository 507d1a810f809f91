//go:build profiling

package protocol

// profilingSuffix is appended to Version in profiling builds, since a
// profiling doer records events a non-profiling doer never sends, making
// the two wire-incompatible despite sharing the same numeric version.
const profilingSuffix = "+profiling"

// ProfilingEnabled reports whether this build was compiled with the
// profiling feature.
const ProfilingEnabled = true
