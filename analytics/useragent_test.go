package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/aiblog/analytics"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		userAgent string
		expected  analytics.Classification
	}{
		{
			name:      "empty",
			userAgent: "",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Other", OS: "Other"},
		},
		{
			name:      "Chrome on Windows",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Chrome", OS: "Windows"},
		},
		{
			name:      "Safari on Mac",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Safari", OS: "macOS"},
		},
		{
			name:      "Firefox on Linux",
			userAgent: "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Firefox", OS: "Linux"},
		},
		{
			// iPhone UAs contain "Mac OS X", so the Mac rule wins before iOS is checked
			name:      "Safari on iPhone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			expected:  analytics.Classification{DeviceType: "Mobile", Browser: "Safari", OS: "macOS"},
		},
		{
			// Android UAs contain "Linux" first in rule order
			name:      "Chrome on Android",
			userAgent: "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			expected:  analytics.Classification{DeviceType: "Mobile", Browser: "Chrome", OS: "Linux"},
		},
		{
			name:      "Edge carries Chrome token",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Chrome", OS: "Windows"},
		},
		{
			name:      "bare Edge token",
			userAgent: "Edge/18 Tablet",
			expected:  analytics.Classification{DeviceType: "Tablet", Browser: "Edge", OS: "Other"},
		},
		{
			name:      "plain iOS app",
			userAgent: "MyReader/2.1 iOS",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Other", OS: "iOS"},
		},
		{
			name:      "case sensitive",
			userAgent: "chrome mobile windows",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Other", OS: "Other"},
		},
		{
			name:      "Chrome before Safari",
			userAgent: "...Chrome...Safari...",
			expected:  analytics.Classification{DeviceType: "Desktop", Browser: "Chrome", OS: "Other"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, analytics.Classify(tc.userAgent))
		})
	}
}
