// ABOUTME: Version constants
// ABOUTME: Identifies the client and server builds
package version

const (
	Version      = "0.1.0"
	Product      = "Talkwire"
	Manufacturer = "Talkwire Project"
)
