package models

import (
	"fmt"
	"strings"
)

// Provider names a third-party account the user has connected.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

// Providers lists every supported calendar provider.
var Providers = []Provider{ProviderGoogle, ProviderMicrosoft}

// ParseProvider accepts the canonical names plus the common aliases "outlook" and "gcal".
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google", "gcal":
		return ProviderGoogle, nil
	case "microsoft", "outlook", "graph":
		return ProviderMicrosoft, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

func (p Provider) String() string { return string(p) }

// DisplayName is the human-facing name of the provider's calendar product.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google Calendar"
	case ProviderMicrosoft:
		return "Outlook Calendar"
	default:
		return string(p)
	}
}
