// File: internal/infra/adapters/checkout/credentials.go
package checkout

import "strings"

// placeholderMarkers are the documented markers shipped in config templates.
// A credential containing one is treated as absent, so default installs
// degrade to the manual path instead of attempting a doomed network call.
var placeholderMarkers = []string{"xxxx", "XXXX", "YOUR_", "PLACEHOLDER"}

func credentialPresent(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	for _, m := range placeholderMarkers {
		if strings.Contains(key, m) {
			return false
		}
	}
	return true
}
