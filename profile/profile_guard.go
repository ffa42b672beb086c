//go:build (!embedded && !cloud) || (embedded && cloud)

// This file exists only to document the selection mechanism; it contributes
// no declarations. The actual compile-time error comes from profile.Current
// referencing the package-level var `current`: with no profile tag selected,
// neither profile_embedded.go nor profile_cloud.go is compiled and `current`
// is undefined; with both tags selected, both files are compiled and
// `current` is declared twice. Either way, `go build ./...` fails before a
// binary exists, which is the "code paths inapplicable to the selected
// profile must be physically absent" requirement made literal for the
// profile choice itself.
package profile
