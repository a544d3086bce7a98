package storagegate

import "fmt"

// Domain describes a tenant partition. Folder is the client id allowed to write to it.
type Domain struct {
	Name   string `json:"name"`
	Folder string `json:"folder" mapstructure:"folder"`
}

// DefaultDomains returns the domains served when none are configured.
func DefaultDomains() map[string]Domain {
	return map[string]Domain{
		"agcore":  {Name: "agcore", Folder: "agcore"},
		"agvideo": {Name: "agvideo", Folder: "agvideo"},
		"agimage": {Name: "agimage", Folder: "agimage"},
	}
}

// AccessPolicy decides whether a caller may read or write a domain.
// It is immutable after construction and safe for concurrent use.
type AccessPolicy struct {
	domains map[string]Domain
}

func NewAccessPolicy(domains map[string]Domain) *AccessPolicy {
	copied := make(map[string]Domain, len(domains))
	for name, d := range domains {
		if d.Name == "" {
			d.Name = name
		}
		copied[name] = d
	}
	return &AccessPolicy{domains: copied}
}

// CheckWrite fails with ErrAccessDenied if the domain is unknown or the
// caller's client id is not exactly the domain's folder.
func (p *AccessPolicy) CheckWrite(domain, clientID string) (Domain, error) {
	d, ok := p.domains[domain]
	if !ok {
		return Domain{}, fmt.Errorf("check write access: %w: unknown domain %q", ErrAccessDenied, domain)
	}
	if d.Folder != clientID {
		return Domain{}, fmt.Errorf("check write access: %w: client %q may not write to domain %q", ErrAccessDenied, clientID, domain)
	}
	return d, nil
}

// CheckRead fails with ErrAccessDenied only if the domain is unknown.
// Any authenticated caller may read a known domain.
func (p *AccessPolicy) CheckRead(domain string) (Domain, error) {
	d, ok := p.domains[domain]
	if !ok {
		return Domain{}, fmt.Errorf("check read access: %w: unknown domain %q", ErrAccessDenied, domain)
	}
	return d, nil
}

// Domains returns a copy of the configured domains.
func (p *AccessPolicy) Domains() map[string]Domain {
	out := make(map[string]Domain, len(p.domains))
	for k, v := range p.domains {
		out[k] = v
	}
	return out
}
