package validate

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

func validProfile() *profile.Profile {
	p := profile.New("Acme Baseline", "com.acme.profile", "Acme Inc")
	pl := profile.NewPayload(profile.TypeWiFi, p.Identifier, "corp-wifi")
	pl.Settings[profile.KeySSID] = profile.TextValue("Corp")
	pl.Settings[profile.KeySecurityType] = profile.TextValue("WPA2")
	pl.Settings[profile.KeyPassword] = profile.TextValue("hunter2")
	p.AddPayload(pl)
	return p
}

func hasCode(issues []Issue, code Code) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func countCode(issues []Issue, code Code) int {
	var n int
	for _, issue := range issues {
		if issue.Code == code {
			n++
		}
	}
	return n
}

func TestValidProfileHasNoIssues(t *testing.T) {
	issues := Profile(validProfile())
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestProfileLevelChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*profile.Profile)
		want   Code
	}{
		{"empty name", func(p *profile.Profile) { p.Name = "  " }, EmptyName},
		{"empty identifier", func(p *profile.Profile) { p.Identifier = "" }, EmptyIdentifier},
		{"malformed identifier", func(p *profile.Profile) { p.Identifier = "acme" }, InvalidIdentifier},
		{"empty organization", func(p *profile.Profile) { p.Organization = "" }, InvalidOrganization},
		{"bad scope", func(p *profile.Profile) { p.Scope = "Device" }, InvalidScope},
		{"no payloads", func(p *profile.Profile) { p.Payloads = nil }, NoPayloads},
	}
	for _, tt := range tests {
		p := validProfile()
		tt.mutate(p)
		issues := Profile(p)
		if !hasCode(issues, tt.want) {
			t.Errorf("%s: expected %s in %v", tt.name, tt.want, issues)
		}
		if !HasErrors(issues) {
			t.Errorf("%s: expected an error severity finding", tt.name)
		}
	}
}

func TestValidateAccumulatesAllFindings(t *testing.T) {
	p := validProfile()
	p.Name = ""
	p.Organization = ""
	p.Scope = "Everywhere"
	issues := Profile(p)
	for _, want := range []Code{EmptyName, InvalidOrganization, InvalidScope} {
		if !hasCode(issues, want) {
			t.Errorf("expected %s in %v", want, issues)
		}
	}
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		identifier string
		want       bool
	}{
		{"com.acme.profile", true},
		{"com.acme", true},
		{"COM.Acme.Profile", true}, // compared against the lowercased form
		{"com.acme-corp.profile-2", true},
		{"com.1acme.profile", false}, // component starts with a digit
		{"acme", false},              // fewer than two components
		{"com..acme", false},         // empty component
		{".com.acme", false},
		{"com.acme.", false},
		{"com.ac me", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidIdentifier(tt.identifier); got != tt.want {
			t.Errorf("ValidIdentifier(%q) = %v, want %v", tt.identifier, got, tt.want)
		}
	}
}

func TestDuplicatePayloadIdentifiers(t *testing.T) {
	p := validProfile()
	wifi := p.Payloads[0]
	// three payloads under one identifier still yield a single finding
	p.AddPayload(wifi.Clone(wifi.Identifier))
	p.AddPayload(wifi.Clone(wifi.Identifier))

	issues := Profile(p)
	if got := countCode(issues, DuplicatePayloadIdentifier); got != 1 {
		t.Errorf("duplicate findings: got %d, want 1", got)
	}

	// a second duplicated identifier is reported separately
	vpn := profile.NewPayload(profile.TypeVPN, p.Identifier, "vpn")
	vpn.Settings[profile.KeyServerAddress] = profile.TextValue("vpn.acme.com")
	vpn.Settings[profile.KeyVPNType] = profile.TextValue("IKEv2")
	vpn.Settings[profile.KeyAuthenticationMethod] = profile.TextValue("Certificate")
	p.AddPayload(vpn)
	p.AddPayload(vpn.Clone(vpn.Identifier))

	issues = Profile(p)
	if got := countCode(issues, DuplicatePayloadIdentifier); got != 2 {
		t.Errorf("duplicate findings with two groups: got %d, want 2", got)
	}
}

func TestPrivacyPayloadRules(t *testing.T) {
	p := profile.New("Privacy", "com.acme.privacy", "Acme Inc")
	pl := profile.NewPayload(profile.TypePrivacy, p.Identifier, "tcc")
	pl.Settings[profile.KeyServices] = profile.TextListValue(nil)
	p.AddPayload(pl)

	issues := Profile(p)
	if !hasCode(issues, MissingServices) {
		t.Fatalf("expected MissingServices in %v", issues)
	}
	for _, issue := range issues {
		if issue.Code == MissingServices && issue.PayloadIdentifier != pl.Identifier {
			t.Errorf("finding should name the payload, got %q", issue.PayloadIdentifier)
		}
	}

	// entries missing their fields are located by index
	p.Payloads[0].Settings[profile.KeyServices] = profile.TextListValue([]string{
		"SystemPolicyAllFiles|Allow",
		"|Allow",
		"ScreenCapture|Allow",
	})
	issues = Profile(p)
	if !hasCode(issues, MissingServiceName) {
		t.Errorf("expected MissingServiceName in %v", issues)
	}
	if !hasCode(issues, MissingReceiverIdentifier) {
		t.Errorf("expected MissingReceiverIdentifier in %v", issues)
	}
	for _, issue := range issues {
		switch issue.Code {
		case MissingServiceName:
			if issue.Index != 1 {
				t.Errorf("MissingServiceName index: got %d, want 1", issue.Index)
			}
		case MissingReceiverIdentifier:
			if issue.Index != 2 {
				t.Errorf("MissingReceiverIdentifier index: got %d, want 2", issue.Index)
			}
		}
	}
}

func TestWiFiPayloadRules(t *testing.T) {
	p := validProfile()
	wifi := p.Payload("com.acme.profile.corp-wifi")

	wifi.Settings[profile.KeyPassword] = profile.TextValue("")
	issues := Profile(p)
	if !hasCode(issues, MissingPassword) {
		t.Errorf("WPA2 with blank password: expected MissingPassword in %v", issues)
	}

	// an open network needs no password
	wifi.Settings[profile.KeySecurityType] = profile.TextValue(profile.SecurityNone)
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("open network: expected no issues, got %v", issues)
	}

	wifi.Settings[profile.KeySSID] = profile.TextValue("")
	wifi.Settings[profile.KeySecurityType] = profile.TextValue("")
	issues = Profile(p)
	if !hasCode(issues, MissingSSID) || !hasCode(issues, MissingSecurityType) {
		t.Errorf("expected MissingSSID and MissingSecurityType in %v", issues)
	}
}

func TestVPNPayloadRules(t *testing.T) {
	p := profile.New("VPN", "com.acme.vpn", "Acme Inc")
	pl := profile.NewPayload(profile.TypeVPN, p.Identifier, "tunnel")
	p.AddPayload(pl)

	issues := Profile(p)
	for _, want := range []Code{MissingServerAddress, MissingVPNType, MissingAuthenticationMethod} {
		if !hasCode(issues, want) {
			t.Errorf("expected %s in %v", want, issues)
		}
	}

	pl = p.Payloads[0]
	pl.Settings[profile.KeyServerAddress] = profile.TextValue("vpn.acme.com")
	pl.Settings[profile.KeyVPNType] = profile.TextValue("IKEv2")
	pl.Settings[profile.KeyAuthenticationMethod] = profile.TextValue("Certificate")
	p.Payloads[0] = pl
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("complete vpn payload: expected no issues, got %v", issues)
	}
}

func TestFileVaultPayloadRules(t *testing.T) {
	p := profile.New("FileVault", "com.acme.filevault", "Acme Inc")
	pl := profile.NewPayload(profile.TypeFileVault, p.Identifier, "fde")
	pl.Settings[profile.KeyEnableFileVault] = profile.BoolValue(true)
	p.AddPayload(pl)

	issues := Profile(p)
	if !hasCode(issues, MissingRecoveryKey) {
		t.Errorf("expected MissingRecoveryKey in %v", issues)
	}

	p.Payloads[0].Settings[profile.KeyPersonalRecoveryKey] = profile.BoolValue(true)
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("personal recovery key set: expected no issues, got %v", issues)
	}

	// encryption not requested: no recovery key needed
	p.Payloads[0].Settings = profile.Settings{
		profile.KeyEnableFileVault: profile.BoolValue(false),
	}
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("encryption disabled: expected no issues, got %v", issues)
	}
}

func TestGatekeeperPayloadRules(t *testing.T) {
	p := profile.New("Gatekeeper", "com.acme.gatekeeper", "Acme Inc")
	pl := profile.NewPayload(profile.TypeGatekeeper, p.Identifier, "sources")
	p.AddPayload(pl)

	issues := Profile(p)
	if !hasCode(issues, MissingAllowedSources) {
		t.Errorf("expected MissingAllowedSources in %v", issues)
	}

	p.Payloads[0].Settings[profile.KeyAllowedSources] = profile.TextValue("AppStoreAndIdentifiedDevelopers")
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("allowed sources set: expected no issues, got %v", issues)
	}
}

func TestUnknownPayloadNeedsSettings(t *testing.T) {
	p := profile.New("Custom", "com.acme.custom", "Acme Inc")
	p.AddPayload(profile.NewPayload("com.example.custom", p.Identifier, "custom"))

	issues := Profile(p)
	if !hasCode(issues, EmptySettings) {
		t.Errorf("expected EmptySettings in %v", issues)
	}

	p.Payloads[0].Settings["Anything"] = profile.BoolValue(true)
	if issues := Profile(p); len(issues) != 0 {
		t.Errorf("populated settings: expected no issues, got %v", issues)
	}
}

func TestWarningsNeverBlock(t *testing.T) {
	p := validProfile()
	p.Name = strings.Repeat("n", nameWarnLength+1)
	p.Description = strings.Repeat("d", descriptionWarnLength+1)

	issues := Profile(p)
	if !hasCode(issues, LongName) || !hasCode(issues, LongDescription) {
		t.Fatalf("expected LongName and LongDescription in %v", issues)
	}
	if HasErrors(issues) {
		t.Errorf("warnings must not carry error severity: %v", issues)
	}
	if got := Errors(issues); len(got) != 0 {
		t.Errorf("Errors() on warnings: got %v", got)
	}
}

func TestPayloadCountWarning(t *testing.T) {
	p := profile.New("Big", "com.acme.big", "Acme Inc")
	for i := 0; i <= payloadWarnCount; i++ {
		pl := profile.NewPayload("com.example.custom", p.Identifier, "custom")
		pl.Identifier = pl.Identifier + "-" + strings.Repeat("x", i+1)
		pl.Settings["Key"] = profile.BoolValue(true)
		p.AddPayload(pl)
	}
	issues := Profile(p)
	if !hasCode(issues, ManyPayloads) {
		t.Errorf("expected ManyPayloads in %v", issues)
	}
	if HasErrors(issues) {
		t.Errorf("payload count warning must not block: %v", issues)
	}
}

func TestSettingsCountWarning(t *testing.T) {
	p := validProfile()
	pl := profile.NewPayload("com.example.custom", p.Identifier, "custom")
	for i := 0; i <= settingsWarnCount; i++ {
		pl.Settings[fmt.Sprintf("Key%d", i)] = profile.BoolValue(true)
	}
	p.AddPayload(pl)

	issues := Profile(p)
	if !hasCode(issues, ComplexProfile) {
		t.Errorf("expected ComplexProfile in %v", issues)
	}
	if HasErrors(issues) {
		t.Errorf("settings count warning must not block: %v", issues)
	}
}
