// Package validate checks configuration profiles against the rules the
// profile installer and the management server enforce. Validation is
// pure: it never touches the network or mutates the profile, and it
// accumulates every finding instead of stopping at the first one.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

// Severity splits findings into errors, which block serialization and
// upload, and warnings, which are informational only.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Code identifies a validation rule.
type Code string

// Profile level codes.
const (
	EmptyName                  Code = "EmptyName"
	EmptyIdentifier            Code = "EmptyIdentifier"
	InvalidIdentifier          Code = "InvalidIdentifier"
	InvalidOrganization        Code = "InvalidOrganization"
	InvalidScope               Code = "InvalidScope"
	NoPayloads                 Code = "NoPayloads"
	DuplicatePayloadIdentifier Code = "DuplicatePayloadIdentifier"
)

// Payload level codes.
const (
	InvalidPayloadVersion       Code = "InvalidPayloadVersion"
	MissingServices             Code = "MissingServices"
	MissingServiceName          Code = "MissingServiceName"
	MissingAuthorization        Code = "MissingAuthorization"
	MissingReceiverIdentifier   Code = "MissingReceiverIdentifier"
	MissingSSID                 Code = "MissingSSID"
	MissingSecurityType         Code = "MissingSecurityType"
	MissingPassword             Code = "MissingPassword"
	MissingServerAddress        Code = "MissingServerAddress"
	MissingVPNType              Code = "MissingVPNType"
	MissingAuthenticationMethod Code = "MissingAuthenticationMethod"
	MissingRecoveryKey          Code = "MissingRecoveryKey"
	MissingAllowedSources       Code = "MissingAllowedSources"
	EmptySettings               Code = "EmptySettings"
)

// Warning codes. Warnings never block processing.
const (
	LongName        Code = "LongName"
	LongDescription Code = "LongDescription"
	ManyPayloads    Code = "ManyPayloads"
	ComplexProfile  Code = "ComplexProfile"
)

// Soft thresholds behind the warning codes.
const (
	nameWarnLength        = 64
	descriptionWarnLength = 256
	payloadWarnCount      = 20
	settingsWarnCount     = 100
)

// Issue is one validation finding with enough context to render an
// actionable message.
type Issue struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`

	// PayloadIdentifier and PayloadName locate the offending payload.
	// Empty for profile level findings.
	PayloadIdentifier string `json:"payload_identifier,omitempty"`
	PayloadName       string `json:"payload_name,omitempty"`

	// Index locates the offending element of a list setting, or -1.
	Index int `json:"index"`

	Message string `json:"message"`
	Remedy  string `json:"remedy,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Severity.String())
	b.WriteString(" ")
	b.WriteString(string(i.Code))
	if i.PayloadIdentifier != "" {
		fmt.Fprintf(&b, " [%s]", i.PayloadIdentifier)
	}
	if i.Index >= 0 {
		fmt.Fprintf(&b, " [#%d]", i.Index)
	}
	b.WriteString(": ")
	b.WriteString(i.Message)
	return b.String()
}

// HasErrors reports whether any issue in the list has error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error severity subset of issues.
func Errors(issues []Issue) []Issue {
	var errs []Issue
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return errs
}

func profileIssue(code Code, message, remedy string) Issue {
	return Issue{Code: code, Severity: SeverityError, Index: -1, Message: message, Remedy: remedy}
}

func payloadIssue(pl profile.Payload, code Code, message, remedy string) Issue {
	return Issue{
		Code:              code,
		Severity:          SeverityError,
		PayloadIdentifier: pl.Identifier,
		PayloadName:       pl.DisplayName,
		Index:             -1,
		Message:           message,
		Remedy:            remedy,
	}
}

func warning(code Code, message string) Issue {
	return Issue{Code: code, Severity: SeverityWarning, Index: -1, Message: message}
}

// identifier components start with a letter and otherwise hold lowercase
// letters, digits and hyphens. The check runs against the lowercased form.
var identifierComponent = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidIdentifier reports whether s is a reverse-DNS profile identifier:
// at least two dot separated components, each non-empty, each starting
// with a letter, each holding only letters, digits and hyphens.
func ValidIdentifier(s string) bool {
	components := strings.Split(strings.ToLower(s), ".")
	if len(components) < 2 {
		return false
	}
	for _, c := range components {
		if !identifierComponent.MatchString(c) {
			return false
		}
	}
	return true
}

// Profile validates the whole profile. An empty result means the profile
// is safe to serialize and upload. An error-free but non-empty result
// holds only warnings, which callers may surface but must not treat as
// blocking.
func Profile(p *profile.Profile) []Issue {
	var issues []Issue
	issues = append(issues, checkMetadata(p)...)
	issues = append(issues, checkDuplicates(p)...)
	if len(p.Payloads) == 0 {
		issues = append(issues, profileIssue(NoPayloads,
			"profile has no payloads",
			"add at least one payload before exporting or uploading"))
		return issues
	}
	for _, pl := range p.Payloads {
		issues = append(issues, checkPayload(pl)...)
	}
	issues = append(issues, checkWarnings(p)...)
	return issues
}

func checkMetadata(p *profile.Profile) []Issue {
	var issues []Issue
	if strings.TrimSpace(p.Name) == "" {
		issues = append(issues, profileIssue(EmptyName,
			"profile name is empty",
			"give the profile a display name"))
	}
	switch {
	case strings.TrimSpace(p.Identifier) == "":
		issues = append(issues, profileIssue(EmptyIdentifier,
			"profile identifier is empty",
			"set a reverse-DNS identifier such as com.acme.profile"))
	case !ValidIdentifier(p.Identifier):
		issues = append(issues, profileIssue(InvalidIdentifier,
			fmt.Sprintf("profile identifier %q is not reverse-DNS formatted", p.Identifier),
			"use at least two dot separated components, each starting with a letter"))
	}
	if strings.TrimSpace(p.Organization) == "" {
		issues = append(issues, profileIssue(InvalidOrganization,
			"profile organization is empty",
			"set the organization the profile is issued by"))
	}
	if !p.Scope.Valid() {
		issues = append(issues, profileIssue(InvalidScope,
			fmt.Sprintf("scope %q is not a valid deployment target", p.Scope),
			`set the scope to "System" or "User"`))
	}
	return issues
}

// checkDuplicates reports one finding per distinct duplicated payload
// identifier, however many payloads share it.
func checkDuplicates(p *profile.Profile) []Issue {
	counts := make(map[string]int, len(p.Payloads))
	for _, pl := range p.Payloads {
		counts[pl.Identifier]++
	}
	var issues []Issue
	reported := make(map[string]bool)
	for _, pl := range p.Payloads {
		if counts[pl.Identifier] < 2 || reported[pl.Identifier] {
			continue
		}
		reported[pl.Identifier] = true
		issue := payloadIssue(pl, DuplicatePayloadIdentifier,
			fmt.Sprintf("%d payloads share the identifier %q", counts[pl.Identifier], pl.Identifier),
			"give every payload a unique identifier")
		issues = append(issues, issue)
	}
	return issues
}

func checkPayload(pl profile.Payload) []Issue {
	var issues []Issue
	if pl.Version < 1 {
		issues = append(issues, payloadIssue(pl, InvalidPayloadVersion,
			fmt.Sprintf("payload version %d must be at least 1", pl.Version),
			"set the payload version to 1"))
	}
	switch pl.Kind() {
	case profile.KindPrivacy:
		issues = append(issues, checkPrivacy(pl)...)
	case profile.KindWiFi:
		issues = append(issues, checkWiFi(pl)...)
	case profile.KindVPN:
		issues = append(issues, checkVPN(pl)...)
	case profile.KindFileVault:
		issues = append(issues, checkFileVault(pl)...)
	case profile.KindGatekeeper:
		issues = append(issues, checkGatekeeper(pl)...)
	default:
		if len(pl.Settings) == 0 {
			issues = append(issues, payloadIssue(pl, EmptySettings,
				"payload has no settings configured",
				"configure at least one setting or remove the payload"))
		}
	}
	return issues
}

func checkPrivacy(pl profile.Payload) []Issue {
	entries := pl.Settings.ServiceEntries()
	if len(entries) == 0 {
		return []Issue{payloadIssue(pl, MissingServices,
			"privacy payload has no services configured",
			"add at least one service grant")}
	}
	var issues []Issue
	for i, entry := range entries {
		at := func(code Code, message, remedy string) {
			issue := payloadIssue(pl, code, message, remedy)
			issue.Index = i
			issues = append(issues, issue)
		}
		if entry.Service == "" {
			at(MissingServiceName,
				fmt.Sprintf("service entry %d has no service name", i),
				"select the TCC service the entry applies to")
		}
		if entry.Authorization == "" {
			at(MissingAuthorization,
				fmt.Sprintf("service entry %d has no authorization decision", i),
				"set the entry to Allow or Deny")
		}
		if entry.NeedsReceiver() && entry.ReceiverIdentifier == "" {
			at(MissingReceiverIdentifier,
				fmt.Sprintf("%s entry %d needs a receiver identifier", entry.Service, i),
				"set the bundle identifier of the receiving application")
		}
	}
	return issues
}

func checkWiFi(pl profile.Payload) []Issue {
	var issues []Issue
	if pl.Settings[profile.KeySSID].IsZero() {
		issues = append(issues, payloadIssue(pl, MissingSSID,
			"wifi payload has no SSID",
			"set the network name"))
	}
	security := pl.Settings.Text(profile.KeySecurityType)
	if strings.TrimSpace(security) == "" {
		issues = append(issues, payloadIssue(pl, MissingSecurityType,
			"wifi payload has no security type",
			`set the security type, or "None" for an open network`))
	} else if security != profile.SecurityNone && pl.Settings[profile.KeyPassword].IsZero() {
		issues = append(issues, payloadIssue(pl, MissingPassword,
			fmt.Sprintf("wifi payload uses %s security but has no password", security),
			"set the network password"))
	}
	return issues
}

func checkVPN(pl profile.Payload) []Issue {
	required := []struct {
		key  string
		code Code
	}{
		{profile.KeyServerAddress, MissingServerAddress},
		{profile.KeyVPNType, MissingVPNType},
		{profile.KeyAuthenticationMethod, MissingAuthenticationMethod},
	}
	var issues []Issue
	for _, r := range required {
		if pl.Settings[r.key].IsZero() {
			issues = append(issues, payloadIssue(pl, r.code,
				fmt.Sprintf("vpn payload has no %s", r.key),
				fmt.Sprintf("set the %s setting", r.key)))
		}
	}
	return issues
}

func checkFileVault(pl profile.Payload) []Issue {
	if !pl.Settings.Bool(profile.KeyEnableFileVault) {
		return nil
	}
	personal := pl.Settings.Bool(profile.KeyPersonalRecoveryKey)
	institutional := pl.Settings.Bool(profile.KeyInstitutionalRecoveryKey)
	if personal || institutional {
		return nil
	}
	return []Issue{payloadIssue(pl, MissingRecoveryKey,
		"disk encryption is enabled without a recovery key mechanism",
		"enable a personal or institutional recovery key")}
}

func checkGatekeeper(pl profile.Payload) []Issue {
	if pl.Settings.Has(profile.KeyAllowedSources) {
		return nil
	}
	return []Issue{payloadIssue(pl, MissingAllowedSources,
		"gatekeeper payload has no allowed sources configured",
		"choose which application sources the policy allows")}
}

func checkWarnings(p *profile.Profile) []Issue {
	var issues []Issue
	if len(p.Name) > nameWarnLength {
		issues = append(issues, warning(LongName,
			fmt.Sprintf("profile name is %d characters; devices truncate long names", len(p.Name))))
	}
	if len(p.Description) > descriptionWarnLength {
		issues = append(issues, warning(LongDescription,
			fmt.Sprintf("profile description is %d characters", len(p.Description))))
	}
	if len(p.Payloads) > payloadWarnCount {
		issues = append(issues, warning(ManyPayloads,
			fmt.Sprintf("profile carries %d payloads; consider splitting it", len(p.Payloads))))
	}
	var settings int
	for _, pl := range p.Payloads {
		settings += len(pl.Settings)
	}
	if settings > settingsWarnCount {
		issues = append(issues, warning(ComplexProfile,
			fmt.Sprintf("profile carries %d settings across its payloads", settings)))
	}
	return issues
}
