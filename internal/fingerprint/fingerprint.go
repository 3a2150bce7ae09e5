// Package fingerprint derives a stable identifier for a client device
// from its reported attributes. The identifier recognizes returning
// devices; it is not collision resistant and must not be treated as a
// secret or proof of identity.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// placeholder substitutes for any attribute the client could not report.
const placeholder = "unknown"

// DeviceAttributes are the client-reported inputs to the fingerprint.
type DeviceAttributes struct {
	Platform   string
	OSVersion  string
	Model      string
	AppVersion string
}

// Generate returns a deterministic fingerprint for the given attributes.
// Missing attributes are replaced with a fixed placeholder, so the result
// is always non-empty and the call never fails.
func Generate(attrs DeviceAttributes) string {
	raw := strings.Join([]string{
		orPlaceholder(attrs.Platform),
		orPlaceholder(attrs.OSVersion),
		orPlaceholder(attrs.Model),
		orPlaceholder(attrs.AppVersion),
	}, "|")

	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", hash)[:32]
}

// Encode returns the readable delimited form, base64-encoded. Used for
// display and debugging; Generate is the stored form.
func Encode(attrs DeviceAttributes) string {
	raw := strings.Join([]string{
		orPlaceholder(attrs.Platform),
		orPlaceholder(attrs.OSVersion),
		orPlaceholder(attrs.Model),
		orPlaceholder(attrs.AppVersion),
	}, "|")
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func orPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return placeholder
	}
	return s
}
