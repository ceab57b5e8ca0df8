package provision

import "fmt"

// NoMatchingImageError means image resolution found no candidate and
// provisioning aborted before any resource was created.
type NoMatchingImageError struct {
	Pattern        string
	Architecture   string
	RootDeviceType string
}

func (e *NoMatchingImageError) Error() string {
	return fmt.Sprintf("no machine image matches pattern %q (architecture %s, root device %s)",
		e.Pattern, e.Architecture, e.RootDeviceType)
}
