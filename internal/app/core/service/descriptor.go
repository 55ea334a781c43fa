// Package service holds helpers shared by the domain services: descriptors for
// the health endpoint, identifier checks, pagination and storage error
// translation.
package service

// Descriptor advertises a service and what it can do. The health endpoint
// lists descriptors so operators can see which modules are wired.
type Descriptor struct {
	Name         string   `json:"name"`
	Domain       string   `json:"domain"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// WithCapabilities returns a copy of the descriptor with additional
// capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}

// Describer is implemented by services that publish a Descriptor.
type Describer interface {
	Descriptor() Descriptor
}
