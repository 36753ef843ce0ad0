package profile

import (
	"strings"

	"github.com/pkg/errors"
)

// TCC service names with additional receiver requirements.
const (
	ServiceScreenCapture = "ScreenCapture"
	ServiceAppleEvents   = "AppleEvents"
)

// ServiceEntry is one privacy (TCC) service grant inside a privacy
// payload. Entries travel in the payload settings as a text list under
// the Services key, one entry per element, pipe separated:
//
//	Service|Authorization[|ReceiverIdentifier[|ReceiverCodeRequirement]]
//
// The receiver fields only apply to ScreenCapture and AppleEvents
// entries, which grant access on behalf of another process.
type ServiceEntry struct {
	Service                 string
	Authorization           string
	ReceiverIdentifier      string
	ReceiverCodeRequirement string
}

// ParseServiceEntry decodes one pipe separated Services element.
func ParseServiceEntry(raw string) (ServiceEntry, error) {
	parts := strings.Split(raw, "|")
	if len(parts) < 2 || len(parts) > 4 {
		return ServiceEntry{}, errors.Errorf("malformed service entry %q", raw)
	}
	entry := ServiceEntry{
		Service:       strings.TrimSpace(parts[0]),
		Authorization: strings.TrimSpace(parts[1]),
	}
	if len(parts) > 2 {
		entry.ReceiverIdentifier = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		entry.ReceiverCodeRequirement = strings.TrimSpace(parts[3])
	}
	return entry, nil
}

// NeedsReceiver reports whether the entry's service grants access on
// behalf of a receiving process and therefore requires the receiver
// identifier fields.
func (e ServiceEntry) NeedsReceiver() bool {
	return e.Service == ServiceScreenCapture || e.Service == ServiceAppleEvents
}

// String encodes the entry back into its pipe separated form.
func (e ServiceEntry) String() string {
	s := e.Service + "|" + e.Authorization
	if e.ReceiverIdentifier != "" || e.ReceiverCodeRequirement != "" {
		s += "|" + e.ReceiverIdentifier
	}
	if e.ReceiverCodeRequirement != "" {
		s += "|" + e.ReceiverCodeRequirement
	}
	return s
}

// ServiceEntries decodes the Services setting of a privacy payload.
// Malformed elements are returned as entries with only the Service field
// set so the validator can point at the offending index.
func (s Settings) ServiceEntries() []ServiceEntry {
	raw := s.TextList(KeyServices)
	entries := make([]ServiceEntry, 0, len(raw))
	for _, el := range raw {
		entry, err := ParseServiceEntry(el)
		if err != nil {
			entry = ServiceEntry{Service: strings.TrimSpace(strings.SplitN(el, "|", 2)[0])}
		}
		entries = append(entries, entry)
	}
	return entries
}
