// Package certs inspects certificate material before it is wired into
// the server configuration: PEM parsing, domain coverage, validity
// window and key pairing. The engine itself never opens certificate
// files; these checks run in front of it.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudflare/cfssl/helpers"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
)

// ExpiryWarnWindow is how close to its NotAfter a certificate may get
// before deployment warns about it.
const ExpiryWarnWindow = 30 * 24 * time.Hour

// Bundle is the parsed content of one PEM certificate file: the leaf
// first, then whatever chain the file carries.
type Bundle struct {
	Path  string
	Leaf  *x509.Certificate
	Chain []*x509.Certificate
}

// LoadBundle reads and parses a PEM certificate file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("unable to read certificate %s", path), err)
	}
	parsed, err := helpers.ParseCertificatesPEM(data)
	if err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("unable to parse certificate %s", path), err)
	}
	if len(parsed) == 0 {
		return nil, nxerrors.Precondition(fmt.Sprintf("no certificates found in %s", path))
	}
	return &Bundle{Path: path, Leaf: parsed[0], Chain: parsed[1:]}, nil
}

// CoversDomain reports whether the leaf is valid for the domain. A
// wildcard domain must appear verbatim among the certificate names;
// anything else goes through standard hostname verification, which
// lets a wildcard certificate cover one label.
func (b *Bundle) CoversDomain(domain string) error {
	if strings.HasPrefix(domain, "*.") {
		for _, name := range b.Leaf.DNSNames {
			if strings.EqualFold(name, domain) {
				return nil
			}
		}
		return nxerrors.Precondition(fmt.Sprintf("certificate %s does not name %s", b.Path, domain))
	}
	if err := b.Leaf.VerifyHostname(domain); err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("certificate %s does not cover %s", b.Path, domain), err)
	}
	return nil
}

// CheckValidity rejects a leaf outside its validity window.
func (b *Bundle) CheckValidity(now time.Time) error {
	if now.Before(b.Leaf.NotBefore) {
		return nxerrors.Precondition(fmt.Sprintf("certificate %s is not valid until %s",
			b.Path, b.Leaf.NotBefore.Format(time.RFC3339)))
	}
	if now.After(b.Leaf.NotAfter) {
		return nxerrors.Precondition(fmt.Sprintf("certificate %s expired %s",
			b.Path, b.Leaf.NotAfter.Format(time.RFC3339)))
	}
	return nil
}

// ExpiresSoon reports the time left on the leaf and whether it falls
// inside the warning window.
func (b *Bundle) ExpiresSoon(now time.Time) (time.Duration, bool) {
	left := b.Leaf.NotAfter.Sub(now)
	return left, left > 0 && left <= ExpiryWarnWindow
}

// VerifyKeyPair confirms the private key file belongs to the
// certificate file.
func VerifyKeyPair(certPath, keyPath string) error {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("unable to read certificate %s", certPath), err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("unable to read private key %s", keyPath), err)
	}
	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return nxerrors.Wrap(nxerrors.ErrCodePlugin,
			fmt.Sprintf("private key %s does not pair with certificate %s", keyPath, certPath), err)
	}
	return nil
}

// Preflight runs every check a deployment cares about on a fullchain
// and key pair: parse, domain coverage, validity and pairing. The
// bundle comes back so callers can report near expiry.
func Preflight(domain, fullchainPath, keyPath string, now time.Time) (*Bundle, error) {
	b, err := LoadBundle(fullchainPath)
	if err != nil {
		return nil, err
	}
	if err := b.CoversDomain(domain); err != nil {
		return nil, err
	}
	if err := b.CheckValidity(now); err != nil {
		return nil, err
	}
	if err := VerifyKeyPair(fullchainPath, keyPath); err != nil {
		return nil, err
	}
	return b, nil
}
