package analytics

import "github.com/avct/uasurfer"

// DeviceType classifies a raw User-Agent string into the coarse device
// buckets recorded on consent events.
func DeviceType(uaString string) string {
	u := uasurfer.Parse(uaString)
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		return "desktop"
	case uasurfer.DevicePhone:
		return "mobile"
	case uasurfer.DeviceTablet:
		return "tablet"
	default:
		return "other"
	}
}
