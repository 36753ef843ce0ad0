package validate

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/Aussie-Nomad/MacForge-sub002/profile"
)

// Compliance codes.
const (
	ForbiddenCombination Code = "ForbiddenCombination"
	MissingRequiredField Code = "MissingRequiredField"
)

// Policy holds the cross-payload compliance tables: payload type sets
// that must not co-occur in one profile, and setting keys each payload
// type must carry. A Policy is built once at startup and never mutated.
type Policy struct {
	// ForbiddenCombinations lists payload type sets that must not all
	// appear in the same profile. A profile whose type set is a superset
	// of any entry is non-compliant.
	ForbiddenCombinations [][]string `yaml:"forbidden_combinations"`

	// RequiredFields maps a payload type to the setting keys every
	// payload of that type must carry.
	RequiredFields map[string][]string `yaml:"required_fields"`
}

// DefaultPolicy returns the built-in compliance tables.
func DefaultPolicy() *Policy {
	return &Policy{
		ForbiddenCombinations: [][]string{
			// network access and disk encryption changes in one profile
			// leave a machine unreachable when the profile half-installs.
			{profile.TypeWiFi, profile.TypeVPN, profile.TypeFileVault},
		},
		RequiredFields: map[string][]string{
			profile.TypePrivacy:    {profile.KeyServices},
			profile.TypeWiFi:       {profile.KeySSID, profile.KeySecurityType},
			profile.TypeVPN:        {profile.KeyServerAddress, profile.KeyVPNType, profile.KeyAuthenticationMethod},
			profile.TypeFileVault:  {profile.KeyEnableFileVault},
			profile.TypeGatekeeper: {profile.KeyAllowedSources},
		},
	}
}

// LoadPolicy reads compliance tables from a YAML file. A missing file is
// not an error; the built-in defaults apply. An empty path also yields
// the defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read compliance policy")
	}
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, errors.Wrapf(err, "parse compliance policy %s", path)
	}
	if policy.RequiredFields == nil {
		policy.RequiredFields = DefaultPolicy().RequiredFields
	}
	return &policy, nil
}

// Check runs the compliance pass against the policy tables. The pass is
// independent of Profile validation and additive to it; callers choose
// strict (both) or advisory (compliance only) validation.
func (policy *Policy) Check(p *profile.Profile) []Issue {
	var issues []Issue

	present := make(map[string]bool, len(p.Payloads))
	for _, pl := range p.Payloads {
		present[pl.Type] = true
	}
	for _, combination := range policy.ForbiddenCombinations {
		if len(combination) == 0 {
			continue
		}
		all := true
		for _, t := range combination {
			if !present[t] {
				all = false
				break
			}
		}
		if all {
			issues = append(issues, profileIssue(ForbiddenCombination,
				fmt.Sprintf("payload types %v must not be combined in one profile", combination),
				"split the conflicting payloads into separate profiles"))
		}
	}

	for _, pl := range p.Payloads {
		for _, key := range policy.RequiredFields[pl.Type] {
			if pl.Settings.Has(key) {
				continue
			}
			issues = append(issues, payloadIssue(pl, MissingRequiredField,
				fmt.Sprintf("payloads of type %s require the %s setting", pl.Type, key),
				fmt.Sprintf("set the %s setting", key)))
		}
	}
	return issues
}

// CheckCompliance runs the compliance pass with the built-in policy.
func CheckCompliance(p *profile.Profile) []Issue {
	return DefaultPolicy().Check(p)
}
