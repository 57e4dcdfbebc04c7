// Package version reports the version of the kvfs binary.
//
// Release builds inject Version, Commit and Date with -ldflags. Other
// builds fall back to the module version and VCS stamps embedded by the
// Go toolchain, and finally to placeholder values.
package version
