package mobileconfig

import (
	"crypto"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
	"go.mozilla.org/pkcs7"
	"golang.org/x/crypto/pkcs12"
)

// Identity is the certificate and private key used to sign exported
// profiles. Signed profiles install without the unsigned warning.
type Identity struct {
	Certificate *x509.Certificate
	Key         crypto.PrivateKey
}

// LoadIdentity reads a signing identity from a PKCS#12 file, the format
// keychain exports produce.
func LoadIdentity(path, password string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read signing identity")
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, errors.Wrap(err, "decode signing identity")
	}
	return &Identity{Certificate: cert, Key: key}, nil
}

// Sign wraps serialized profile bytes in a PKCS#7 signature. Signing
// applies to local exports only; the upload path sends the plain plist
// and lets the management server re-sign.
func Sign(data []byte, identity *Identity) ([]byte, error) {
	signed, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, errors.Wrap(err, "prepare signed profile")
	}
	if err := signed.AddSigner(identity.Certificate, identity.Key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Wrap(err, "sign profile")
	}
	out, err := signed.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "finish signed profile")
	}
	return out, nil
}
