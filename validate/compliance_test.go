package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

func TestForbiddenCombination(t *testing.T) {
	p := profile.New("Everything", "com.acme.everything", "Acme Inc")
	for _, payloadType := range []string{profile.TypeWiFi, profile.TypeVPN, profile.TypeFileVault} {
		pl := profile.NewPayload(payloadType, p.Identifier, payloadType)
		pl.Settings["Key"] = profile.BoolValue(true)
		p.AddPayload(pl)
	}

	issues := CheckCompliance(p)
	if !hasCode(issues, ForbiddenCombination) {
		t.Errorf("expected ForbiddenCombination in %v", issues)
	}

	// a profile whose type set only partially overlaps a forbidden set
	// is compliant
	if !p.RemovePayload("com.acme.everything." + profile.TypeFileVault) {
		t.Fatal("payload not found")
	}
	issues = CheckCompliance(p)
	if hasCode(issues, ForbiddenCombination) {
		t.Errorf("partial overlap should be compliant, got %v", issues)
	}
}

func TestRequiredFieldsTable(t *testing.T) {
	p := profile.New("WiFi", "com.acme.wifi", "Acme Inc")
	pl := profile.NewPayload(profile.TypeWiFi, p.Identifier, "wifi")
	pl.Settings[profile.KeySSID] = profile.TextValue("Corp")
	// SecurityType deliberately absent
	p.AddPayload(pl)

	issues := CheckCompliance(p)
	if got := countCode(issues, MissingRequiredField); got != 1 {
		t.Fatalf("MissingRequiredField findings: got %d, want 1: %v", got, issues)
	}

	pl.Settings[profile.KeySecurityType] = profile.TextValue("WPA2")
	issues = CheckCompliance(p)
	if len(issues) != 0 {
		t.Errorf("expected compliance, got %v", issues)
	}
}

func TestComplianceIndependentOfValidation(t *testing.T) {
	// a profile that fails metadata validation can still be compliant:
	// the two passes are separate callables
	p := profile.New("", "com.acme.wifi", "Acme Inc")
	pl := profile.NewPayload(profile.TypeWiFi, p.Identifier, "wifi")
	pl.Settings[profile.KeySSID] = profile.TextValue("Corp")
	pl.Settings[profile.KeySecurityType] = profile.TextValue(profile.SecurityNone)
	p.AddPayload(pl)

	if issues := CheckCompliance(p); len(issues) != 0 {
		t.Errorf("expected compliance, got %v", issues)
	}
	if issues := Profile(p); !hasCode(issues, EmptyName) {
		t.Errorf("expected EmptyName from the validation pass, got %v", issues)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	policy, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(policy.ForbiddenCombinations) == 0 {
		t.Error("missing file should fall back to the default tables")
	}
}

func TestLoadPolicyOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `forbidden_combinations:
  - ["com.apple.wifi.managed", "com.apple.vpn.managed"]
required_fields:
  com.apple.wifi.managed: ["SSID"]
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatal(err)
	}

	p := profile.New("Net", "com.acme.net", "Acme Inc")
	wifi := profile.NewPayload(profile.TypeWiFi, p.Identifier, "wifi")
	wifi.Settings[profile.KeySSID] = profile.TextValue("Corp")
	vpn := profile.NewPayload(profile.TypeVPN, p.Identifier, "vpn")
	vpn.Settings[profile.KeyServerAddress] = profile.TextValue("vpn.acme.com")
	p.AddPayload(wifi)
	p.AddPayload(vpn)

	issues := policy.Check(p)
	if !hasCode(issues, ForbiddenCombination) {
		t.Errorf("expected the file's forbidden pair to trigger, got %v", issues)
	}
	// the file's required_fields replace the defaults entirely, so the
	// vpn payload owes nothing
	if hasCode(issues, MissingRequiredField) {
		t.Errorf("expected no required field findings, got %v", issues)
	}

	if issues := CheckCompliance(p); hasCode(issues, ForbiddenCombination) {
		t.Errorf("default tables should not forbid wifi+vpn, got %v", issues)
	}
}
