package profile

// Payload type strings for the policy domains MacForge knows how to
// validate and serialize. Anything else is handled by the generic rules.
const (
	TypePrivacy    = "com.apple.TCC.configuration-profile-policy"
	TypeWiFi       = "com.apple.wifi.managed"
	TypeVPN        = "com.apple.vpn.managed"
	TypeFileVault  = "com.apple.MCX.FileVault2"
	TypeGatekeeper = "com.apple.systempolicy.control"
)

// Kind classifies a payload type string into one of the policy domains
// with dedicated validation and serialization rules. KindOther is the
// fallback arm for types MacForge passes through untouched.
type Kind int

const (
	KindOther Kind = iota
	KindPrivacy
	KindWiFi
	KindVPN
	KindFileVault
	KindGatekeeper
)

func (k Kind) String() string {
	switch k {
	case KindPrivacy:
		return "privacy"
	case KindWiFi:
		return "wifi"
	case KindVPN:
		return "vpn"
	case KindFileVault:
		return "filevault"
	case KindGatekeeper:
		return "gatekeeper"
	default:
		return "other"
	}
}

// KindOf maps a payload type string to its Kind.
func KindOf(payloadType string) Kind {
	switch payloadType {
	case TypePrivacy:
		return KindPrivacy
	case TypeWiFi:
		return KindWiFi
	case TypeVPN:
		return KindVPN
	case TypeFileVault:
		return KindFileVault
	case TypeGatekeeper:
		return KindGatekeeper
	default:
		return KindOther
	}
}

// Setting keys interpreted by the validator and the serializer. Keys not
// listed here pass through to the payload dictionary unmodified.
const (
	KeyServices                 = "Services" // text list, see ServiceEntry
	KeySSID                     = "SSID"
	KeySecurityType             = "SecurityType"
	KeyPassword                 = "Password"
	KeyServerAddress            = "ServerAddress"
	KeyVPNType                  = "VPNType"
	KeyAuthenticationMethod     = "AuthenticationMethod"
	KeyEnableFileVault          = "EnableFileVault"
	KeyPersonalRecoveryKey      = "PersonalRecoveryKey"
	KeyInstitutionalRecoveryKey = "InstitutionalRecoveryKey"
	KeyAllowedSources           = "AllowedSources"
)

// SecurityNone is the explicit "no security" value for a WiFi payload's
// SecurityType. Any other value requires a password.
const SecurityNone = "None"
