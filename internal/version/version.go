// ABOUTME: Version information for blockq binaries
// ABOUTME: Reported in hello messages, logs and the -version flag
package version

const (
	// Version is the release version
	Version = "0.3.0"

	// Product is the product name
	Product = "blockq"

	// Manufacturer identifies the maintainers
	Manufacturer = "Resonate Protocol"
)
