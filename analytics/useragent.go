package analytics

import "strings"

// Classification is the coarse device/browser/OS triple derived from a user agent.
type Classification struct {
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
}

type uaRule struct {
	substr string
	label  string
}

// Rules are evaluated in order and the first case-sensitive substring match wins.
// A real browser UA carries both "Chrome" and "Safari", so Chrome must stay ahead of Safari.
var (
	deviceRules = []uaRule{
		{"Mobile", "Mobile"},
		{"Tablet", "Tablet"},
	}
	browserRules = []uaRule{
		{"Chrome", "Chrome"},
		{"Firefox", "Firefox"},
		{"Safari", "Safari"},
		{"Edge", "Edge"},
	}
	osRules = []uaRule{
		{"Windows", "Windows"},
		{"Mac", "macOS"},
		{"Linux", "Linux"},
		{"Android", "Android"},
		{"iOS", "iOS"},
	}
)

// Classification defaults, also the result for an empty user agent.
const (
	DefaultDevice  = "Desktop"
	DefaultBrowser = "Other"
	DefaultOS      = "Other"
)

// Classify maps a raw user agent string to device type, browser and OS labels.
func Classify(userAgent string) Classification {
	return Classification{
		DeviceType: firstMatch(userAgent, deviceRules, DefaultDevice),
		Browser:    firstMatch(userAgent, browserRules, DefaultBrowser),
		OS:         firstMatch(userAgent, osRules, DefaultOS),
	}
}

func firstMatch(ua string, rules []uaRule, fallback string) string {
	if ua == "" {
		return fallback
	}
	for _, r := range rules {
		if strings.Contains(ua, r.substr) {
			return r.label
		}
	}
	return fallback
}
