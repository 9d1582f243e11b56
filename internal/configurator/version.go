package configurator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/executor"
	"github.com/ksyq12/nginxtls/internal/logger"
)

// Version is a dotted release number. Comparison pads the shorter side
// with zeros, so 1.5 and 1.5.0 are equal.
type Version []int

// ParseVersion parses a dotted version string like "1.13.0".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSuffix(s, "."), ".")
	v := make(Version, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid version %q", s)
		}
		v = append(v, n)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("invalid version %q", s)
	}
	return v, nil
}

// Compare returns -1, 0 or 1 ordering v against o.
func (v Version) Compare(o Version) int {
	n := len(v)
	if len(o) > n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		a, b := 0, 0
		if i < len(v) {
			a = v[i]
		}
		if i < len(o) {
			b = o[i]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v is o or newer.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}

func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Detected holds what the nginx binary reported about itself.
type Detected struct {
	Version Version
	Product string
	OpenSSL string
}

var nginxVersionRE = regexp.MustCompile(`(?i)nginx version: ([^/]+)/([0-9.]*)`)

// The trailing spaces matter: nginx prints the OpenSSL version followed
// by a build date, and "running with" wins over "built with" when the
// binary was built against a different release than it loaded.
var (
	runningOpenSSLRE = regexp.MustCompile(`running with OpenSSL ([^ ]+) `)
	builtOpenSSLRE   = regexp.MustCompile(`built with OpenSSL ([^ ]+) `)
)

// minVersion is the oldest nginx the mutation engine supports; older
// releases lack the listen ssl parameter handling it relies on.
var minVersion = Version{0, 8, 48}

// DetectVersion runs the binary with -V and checks that the build can
// serve TLS at all: version present, ssl module compiled in, SNI
// support enabled, release no older than 0.8.48.
func DetectVersion(exe executor.CommandExecutor, bin string) (*Detected, error) {
	out, err := exe.Execute(bin, "-V")
	if err != nil {
		return nil, nxerrors.Wrap(nxerrors.ErrCodePlugin, "unable to run nginx for version detection", err)
	}
	text := string(out)

	m := nginxVersionRE.FindStringSubmatch(text)
	if m == nil || m[2] == "" {
		return nil, nxerrors.Precondition("unable to find nginx version in -V output")
	}
	if !strings.Contains(text, " --with-http_ssl_module") {
		return nil, nxerrors.Precondition("nginx build is missing the ssl module (--with-http_ssl_module)")
	}
	if !strings.Contains(text, "TLS SNI support enabled") {
		return nil, nxerrors.Precondition("nginx build does not support SNI")
	}

	version, err := ParseVersion(m[2])
	if err != nil {
		return nil, nxerrors.Precondition(fmt.Sprintf("unable to parse nginx version %q", m[2]))
	}
	product := m[1]
	if !strings.EqualFold(product, "nginx") {
		logger.Warn("nginx derivative %q detected, behavior may differ", product)
	}
	if !version.AtLeast(minVersion) {
		return nil, nxerrors.NotSupported(fmt.Sprintf(
			"nginx version 0.8.48 or newer is required, found %s", version))
	}

	openssl := ""
	if om := runningOpenSSLRE.FindStringSubmatch(text); om != nil {
		openssl = om[1]
	} else if om := builtOpenSSLRE.FindStringSubmatch(text); om != nil {
		openssl = om[1]
	} else {
		logger.Warn("Unable to find OpenSSL version in nginx -V output")
	}

	return &Detected{Version: version, Product: product, OpenSSL: openssl}, nil
}

// compareLoose orders OpenSSL-style versions such as "1.0.2l": digit
// runs compare numerically, letter runs lexically, a digit run sorts
// before a letter run, and a prefix sorts before its extensions.
func compareLoose(a, b string) int {
	at, bt := looseTokens(a), looseTokens(b)
	for i := 0; i < len(at) && i < len(bt); i++ {
		x, y := at[i], bt[i]
		switch {
		case x.alpha == "" && y.alpha == "":
			if x.num != y.num {
				if x.num < y.num {
					return -1
				}
				return 1
			}
		case x.alpha != "" && y.alpha != "":
			if x.alpha != y.alpha {
				if x.alpha < y.alpha {
					return -1
				}
				return 1
			}
		case x.alpha == "":
			return -1
		default:
			return 1
		}
	}
	switch {
	case len(at) < len(bt):
		return -1
	case len(at) > len(bt):
		return 1
	}
	return 0
}

type looseToken struct {
	num   int
	alpha string
}

func looseTokens(s string) []looseToken {
	var toks []looseToken
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(s[i:j])
			toks = append(toks, looseToken{num: n})
			i = j
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			j := i
			for j < len(s) && ((s[j] >= 'a' && s[j] <= 'z') || (s[j] >= 'A' && s[j] <= 'Z')) {
				j++
			}
			toks = append(toks, looseToken{alpha: s[i:j]})
			i = j
		default:
			i++
		}
	}
	return toks
}
