// Package all imports all stub packages to ensure they register via init().
// Import this package in session setup to enable all stubs.
//
// Example:
//
//	import _ "github.com/zboralski/jniscope/internal/stubs/all"
package all

import (
	_ "github.com/zboralski/jniscope/internal/stubs/android"
	_ "github.com/zboralski/jniscope/internal/stubs/art"
	_ "github.com/zboralski/jniscope/internal/stubs/libc"
)
