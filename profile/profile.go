// Package profile defines the configuration profile model MacForge builds,
// validates, serializes and publishes.
// See https://developer.apple.com/library/ios/featuredarticles/iPhoneConfigurationProfileRef/Introduction/Introduction.html#//apple_ref/doc/uid/TP40010206-CH1-SW4
package profile

import (
	"strings"

	uuid "github.com/satori/go.uuid"
)

// Scope is the deployment target of a profile.
// can be either "System" or "User"
type Scope string

// Scope values accepted by the profile installer.
const (
	ScopeSystem Scope = "System"
	ScopeUser   Scope = "User"
)

// Valid reports whether the scope is one of the two accepted deployment
// targets.
func (s Scope) Valid() bool {
	return s == ScopeSystem || s == ScopeUser
}

func (s Scope) String() string { return string(s) }

// Payload is one configurable unit of device policy inside a profile.
type Payload struct {
	Type        string   `json:"type"`
	Identifier  string   `json:"identifier"`
	UUID        string   `json:"uuid"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Version     int      `json:"version"`
	Enabled     bool     `json:"enabled"`
	Settings    Settings `json:"settings,omitempty"`
}

// NewPayload creates an enabled payload of the given type. The payload
// identifier is scoped under the profile identifier, and the UUID minted
// here stays stable across edits.
func NewPayload(payloadType, profileIdentifier, payloadID string) Payload {
	return Payload{
		Type:        payloadType,
		Identifier:  profileIdentifier + "." + payloadID,
		UUID:        newUUID(),
		DisplayName: payloadID,
		Version:     1,
		Enabled:     true,
		Settings:    Settings{},
	}
}

// Clone returns a copy of the payload under a new identifier with a fresh
// UUID, for duplicating a payload within a profile.
func (p Payload) Clone(identifier string) Payload {
	dup := p
	dup.Identifier = identifier
	dup.UUID = newUUID()
	dup.Settings = make(Settings, len(p.Settings))
	for k, v := range p.Settings {
		dup.Settings[k] = v
	}
	return dup
}

// Kind classifies the payload by its type string.
func (p Payload) Kind() Kind {
	return KindOf(p.Type)
}

// Profile is the deployable unit: human metadata plus an ordered list of
// payloads. A profile is owned by its caller and carries no state beyond
// its fields; it is validated on demand and serialized immediately before
// export or upload.
type Profile struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Organization string    `json:"organization"`
	Identifier   string    `json:"identifier"`
	Scope        Scope     `json:"scope"`
	Payloads     []Payload `json:"payloads"`
}

// New creates an empty profile targeting the System scope.
func New(name, identifier, organization string) *Profile {
	return &Profile{
		Name:         name,
		Identifier:   identifier,
		Organization: organization,
		Scope:        ScopeSystem,
	}
}

// AddPayload appends a payload. Insertion order is preserved into the
// serialized output. Duplicate identifiers are not rejected here; the
// validator reports them.
func (p *Profile) AddPayload(pl Payload) {
	p.Payloads = append(p.Payloads, pl)
}

// RemovePayload removes the payload with the given identifier and reports
// whether one was found.
func (p *Profile) RemovePayload(identifier string) bool {
	for i := range p.Payloads {
		if p.Payloads[i].Identifier == identifier {
			p.Payloads = append(p.Payloads[:i], p.Payloads[i+1:]...)
			return true
		}
	}
	return false
}

// Payload returns the payload with the given identifier, or nil.
func (p *Profile) Payload(identifier string) *Payload {
	for i := range p.Payloads {
		if p.Payloads[i].Identifier == identifier {
			return &p.Payloads[i]
		}
	}
	return nil
}

// newUUID returns an uppercase v4 UUID, the form profile tooling on the
// platform conventionally uses.
func newUUID() string {
	return strings.ToUpper(uuid.NewV4().String())
}

// NewUUID mints a payload or profile UUID. The serializer uses this for
// the profile-level UUID it generates at serialization time.
func NewUUID() string { return newUUID() }
