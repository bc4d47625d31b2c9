package model

import "strings"

// Known providers. Older records carry no data_source and are attributed by
// their id namespace.
const (
	ProviderRSOE      = "rsoe"
	ProviderReliefWeb = "reliefweb"
	ProviderEMSC      = "emsc"
)

// Provider returns the provider that produced e.
func (e Event) Provider() string {
	if p := strings.TrimSpace(e.OriginProvider); p != "" {
		return strings.ToLower(p)
	}
	switch {
	case strings.HasPrefix(e.ID, "RW_"):
		return ProviderReliefWeb
	case strings.HasPrefix(e.ID, "EMSC_"):
		return ProviderEMSC
	default:
		return ProviderRSOE
	}
}
