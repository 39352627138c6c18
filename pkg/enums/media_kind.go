package enums

import "fmt"

// MediaKind names the business media slots collected during onboarding.
type MediaKind string

const (
	MediaKindLogo   MediaKind = "logo"
	MediaKindBanner MediaKind = "banner"
)

var validMediaKinds = []MediaKind{
	MediaKindLogo,
	MediaKindBanner,
}

// String returns the literal string for the kind.
func (m MediaKind) String() string {
	return string(m)
}

// Label is the capitalized name used in user-facing messages.
func (m MediaKind) Label() string {
	switch m {
	case MediaKindLogo:
		return "Logo"
	case MediaKindBanner:
		return "Banner"
	default:
		return string(m)
	}
}

// IsValid reports whether the kind is known.
func (m MediaKind) IsValid() bool {
	for _, candidate := range validMediaKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMediaKind converts raw input into a MediaKind.
func ParseMediaKind(value string) (MediaKind, error) {
	for _, candidate := range validMediaKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid media kind %q", value)
}
