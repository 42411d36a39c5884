package config

import "dominicbreuker/cas/pkg/sock"

// Dependencies contains injectable dependencies for testing and customization.
// All fields are optional and will use default implementations if nil.
type Dependencies struct {
	Platform sock.Platform
}

// GetPlatform returns the socket platform from dependencies, or the
// process-wide default if deps is nil or deps.Platform is nil.
func GetPlatform(deps *Dependencies) sock.Platform {
	if deps != nil && deps.Platform != nil {
		return deps.Platform
	}
	return sock.Default()
}
