package version

import "fmt"

const (
	appMajor = 0
	appMinor = 1
	appPatch = 0
)

// UserAgent is sent with every request to the relay.
const UserAgent = "bundlr-go"

// String returns the application version as a properly formed string.
func String() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}
