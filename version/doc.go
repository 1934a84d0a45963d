// Package version reports the build of the running pipeflow binary.
//
// Version, commit and build time are stamped at link time and fall back to
// the VCS data the Go toolchain embeds:
//
//	go build -ldflags "-X github.com/kbukum/pipeflow/version.Version=1.0.0" ./cmd/pipeflow
package version
