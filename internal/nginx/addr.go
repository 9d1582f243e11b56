package nginx

import (
	"net"
	"strings"
)

// Addr is one endpoint of a listen directive. Host and Port keep the
// spelling found in the configuration; an empty Port on a bare address
// means nginx's implicit HTTP port, and an empty Host (or "*") means any
// address. Default records a default_server parameter but is not part of
// the canonical string or equality.
type Addr struct {
	Host     string
	Port     string
	SSL      bool
	IPv6     bool
	IPv6Only bool
	Default  bool
}

// ParseAddr resolves the arguments of a listen directive into an Addr.
// Returns nil for unix: endpoints and empty argument lists. Parameters
// other than ssl, default_server, default and ipv6only=on are ignored.
func ParseAddr(args []string) *Addr {
	if len(args) == 0 {
		return nil
	}
	endpoint := args[0]
	if endpoint == "" || strings.HasPrefix(endpoint, "unix:") {
		return nil
	}
	a := &Addr{}
	switch {
	case strings.HasPrefix(endpoint, "["):
		end := strings.Index(endpoint, "]")
		if end < 0 {
			return nil
		}
		a.IPv6 = true
		a.Host = endpoint[1:end]
		if rest := endpoint[end+1:]; strings.HasPrefix(rest, ":") {
			a.Port = rest[1:]
		}
	case isDigits(endpoint):
		a.Port = endpoint
	default:
		if i := strings.LastIndex(endpoint, ":"); i >= 0 {
			a.Host, a.Port = endpoint[:i], endpoint[i+1:]
		} else {
			a.Host = endpoint
		}
	}
	for _, param := range args[1:] {
		switch param {
		case "ssl":
			a.SSL = true
		case "default_server", "default":
			a.Default = true
		case "ipv6only=on":
			a.IPv6Only = true
		}
	}
	return a
}

// String returns the canonical form: the endpoint followed by " ssl" and
// " ipv6only=on" when set.
func (a Addr) String() string {
	var sb strings.Builder
	sb.WriteString(a.Endpoint())
	if a.SSL {
		sb.WriteString(" ssl")
	}
	if a.IPv6Only {
		sb.WriteString(" ipv6only=on")
	}
	return sb.String()
}

// Endpoint returns the host:port part the way a listen directive spells
// it: bracketed IPv6 hosts, a bare port for an empty host, a bare host
// for an empty port.
func (a Addr) Endpoint() string {
	host := a.Host
	if a.IPv6 {
		host = "[" + host + "]"
	}
	switch {
	case a.Host == "" && !a.IPv6:
		return a.Port
	case a.Port == "":
		return host
	default:
		return host + ":" + a.Port
	}
}

// WithPort returns a copy of the address listening on a different port.
func (a Addr) WithPort(port string) Addr {
	a.Port = port
	return a
}

// Equal reports address equality ignoring representational variants:
// an empty host, "*" and "0.0.0.0" all mean any address, and IPv6 hosts
// compare by parsed form. Port, SSL and IPv6Only must match exactly;
// Default is not compared.
func (a Addr) Equal(b Addr) bool {
	return a.normHost() == b.normHost() &&
		a.Port == b.Port &&
		a.SSL == b.SSL &&
		a.IPv6Only == b.IPv6Only
}

// ServesHTTPPort reports whether the address serves the given HTTP port,
// counting an empty port as the implicit HTTP port.
func (a Addr) ServesHTTPPort(port string) bool {
	return a.Port == port || a.Port == ""
}

func (a Addr) normHost() string {
	h := a.Host
	if h == "*" || h == "0.0.0.0" {
		return ""
	}
	if a.IPv6 {
		if ip := net.ParseIP(h); ip != nil {
			return ip.String()
		}
	}
	return h
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
