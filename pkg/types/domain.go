package types

// Domain is the closed set of personalization domains an adapter can be
// trained for. Adapters whose artifacts carry no recognizable domain fall
// into DomainCustom rather than growing the set dynamically.
type Domain string

const (
	DomainPersonality Domain = "personality"
	DomainWork        Domain = "work"
	DomainHome        Domain = "home"
	DomainHealth      Domain = "health"
	DomainPersonal    Domain = "personal"
	DomainCustom      Domain = "custom"
)

// Domains lists every known domain in declared priority order. The router
// uses this ordering to break score ties between adapters.
func Domains() []Domain {
	return []Domain{
		DomainPersonality,
		DomainWork,
		DomainHome,
		DomainHealth,
		DomainPersonal,
		DomainCustom,
	}
}

// ParseDomain maps a raw string to a known domain, or DomainCustom when the
// value is not recognized. It never fails.
func ParseDomain(s string) Domain {
	switch Domain(s) {
	case DomainPersonality, DomainWork, DomainHome, DomainHealth, DomainPersonal:
		return Domain(s)
	default:
		return DomainCustom
	}
}

func (d Domain) String() string { return string(d) }
