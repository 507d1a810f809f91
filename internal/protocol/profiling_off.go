//go:build !profiling

package protocol

// profilingSuffix is empty in the default, non-profiling build.
const profilingSuffix = ""

// ProfilingEnabled reports whether this build was compiled with the
// profiling feature.
const ProfilingEnabled = false
