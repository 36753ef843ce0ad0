// Package mobileconfig turns validated profiles into the property list
// wire format the profile installer and the management server consume.
package mobileconfig

import (
	"fmt"
	"strings"

	"github.com/groob/plist"
	"github.com/pkg/errors"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
	"github.com/Aussie-Nomad/MacForge-sub002/validate"
)

// InvalidProfileError is returned by Serialize when the profile fails
// validation. Serialization never proceeds past a validation error;
// warnings pass.
type InvalidProfileError struct {
	Issues []validate.Issue
}

func (e *InvalidProfileError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("profile failed validation: %s", strings.Join(msgs, "; "))
}

// reserved payload dictionary keys. Settings must not collide with these.
var reservedKeys = map[string]bool{
	"PayloadType":        true,
	"PayloadIdentifier":  true,
	"PayloadUUID":        true,
	"PayloadDisplayName": true,
	"PayloadDescription": true,
	"PayloadVersion":     true,
	"PayloadEnabled":     true,
}

// envelope is the profile level dictionary wrapping the payload dicts.
// Field order follows the profile reference document.
type envelope struct {
	PayloadContent      []map[string]interface{}
	PayloadDescription  string
	PayloadDisplayName  string
	PayloadIdentifier   string
	PayloadOrganization string
	PayloadScope        string
	PayloadType         string
	PayloadUUID         string
	PayloadVersion      int
}

// Serialize validates the profile and encodes it as plist XML. The
// profile level UUID is minted here, at serialization time; repeated
// calls produce distinct UUIDs over otherwise identical content.
func Serialize(p *profile.Profile) ([]byte, error) {
	if errs := validate.Errors(validate.Profile(p)); len(errs) > 0 {
		return nil, &InvalidProfileError{Issues: errs}
	}

	content := make([]map[string]interface{}, 0, len(p.Payloads))
	for _, pl := range p.Payloads {
		dict, err := payloadDict(pl)
		if err != nil {
			return nil, err
		}
		content = append(content, dict)
	}

	out := envelope{
		PayloadContent:      content,
		PayloadDescription:  p.Description,
		PayloadDisplayName:  p.Name,
		PayloadIdentifier:   p.Identifier,
		PayloadOrganization: p.Organization,
		PayloadScope:        p.Scope.String(),
		PayloadType:         "Configuration",
		PayloadUUID:         profile.NewUUID(),
		PayloadVersion:      1,
	}
	data, err := plist.MarshalIndent(&out, "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode profile plist")
	}
	return data, nil
}

func payloadDict(pl profile.Payload) (map[string]interface{}, error) {
	dict := map[string]interface{}{
		"PayloadType":        pl.Type,
		"PayloadIdentifier":  pl.Identifier,
		"PayloadUUID":        pl.UUID,
		"PayloadDisplayName": pl.DisplayName,
		"PayloadDescription": pl.Description,
		"PayloadVersion":     pl.Version,
		"PayloadEnabled":     pl.Enabled,
	}
	for key := range pl.Settings {
		if reservedKeys[key] {
			return nil, errors.Errorf("payload %s: setting key %q collides with a reserved key", pl.Identifier, key)
		}
		if pl.Kind() == profile.KindPrivacy && key == profile.KeyServices {
			continue
		}
		dict[key] = settingValue(pl.Settings[key])
	}
	if pl.Kind() == profile.KindPrivacy {
		dict[profile.KeyServices] = serviceDicts(pl.Settings.ServiceEntries())
	}
	return dict, nil
}

// serviceDicts reshapes the flat Services entries into the array of
// dictionaries the TCC payload format expects. The reshaping lives here
// rather than in the validator.
func serviceDicts(entries []profile.ServiceEntry) []map[string]interface{} {
	dicts := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		dict := map[string]interface{}{
			"Service":       entry.Service,
			"Authorization": entry.Authorization,
		}
		if entry.ReceiverIdentifier != "" {
			dict["AEReceiverIdentifier"] = entry.ReceiverIdentifier
		}
		if entry.ReceiverCodeRequirement != "" {
			dict["AEReceiverCodeRequirement"] = entry.ReceiverCodeRequirement
		}
		dicts = append(dicts, dict)
	}
	return dicts
}

// settingValue lowers a tagged setting value into the concrete type the
// plist encoder understands. The switch is exhaustive over the kinds.
func settingValue(v profile.Value) interface{} {
	switch v.Kind() {
	case profile.ValueBool:
		return v.Bool()
	case profile.ValueInteger:
		return v.Integer()
	case profile.ValueFloat:
		return v.Float()
	case profile.ValueTextList:
		return v.TextList()
	case profile.ValueText:
		return v.Text()
	default:
		return v.Text()
	}
}

// filenameReplacer maps the characters the export sanitization strips.
var filenameReplacer = strings.NewReplacer(
	":", "_", "/", "_", `\`, "_", "?", "_", "%", "_",
	"*", "_", "|", "_", `"`, "_", "<", "_", ">", "_",
)

// Filename derives the local export filename from the profile name.
func Filename(name string) string {
	return filenameReplacer.Replace(name) + ".mobileconfig"
}
