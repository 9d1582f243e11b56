package configurator

import (
	"fmt"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/logger"
	"github.com/ksyq12/nginxtls/internal/nginx"
)

// DeployCertificate installs certificate material into every server
// block resolved for the domain. Blocks not yet serving TLS grow the
// listen directives for it first; the certificate paths then land as
// ssl_certificate, ssl_certificate_key, the shared TLS options include
// and, when configured, ssl_dhparam. All changes stay in memory until
// Commit. certPath and chainPath are accepted for interface symmetry
// with installers that keep the leaf and chain apart; nginx wants the
// fullchain.
func (c *Configurator) DeployCertificate(domain, certPath, keyPath, chainPath, fullchainPath string) error {
	if fullchainPath == "" {
		return nxerrors.Precondition(
			fmt.Sprintf("no fullchain path given for %s; nginx needs the full certificate chain in one file", domain))
	}
	if keyPath == "" {
		return nxerrors.Precondition(fmt.Sprintf("no private key path given for %s", domain))
	}

	vhosts, err := c.FindBestVHosts(domain)
	if err != nil {
		return err
	}
	for _, vh := range vhosts {
		if err := c.deployToVHost(vh, keyPath, fullchainPath); err != nil {
			return err
		}
		logger.Info("Deployed certificate for %s to server block in %s", domain, vh.FilePath)
	}
	return nil
}

// deployToVHost makes one server block serve the certificate.
func (c *Configurator) deployToVHost(vh *nginx.VirtualHost, keyPath, fullchainPath string) error {
	if !vh.SSL {
		if err := c.makeServerSSL(vh); err != nil {
			return err
		}
	}

	directives := []*nginx.Directive{
		nginx.NewDirective("ssl_certificate", fullchainPath),
		nginx.NewDirective("ssl_certificate_key", keyPath),
		nginx.NewDirective("include", c.settings.TLSOptionsPath),
	}
	if c.settings.DHParamPath != "" {
		directives = append(directives, nginx.NewDirective("ssl_dhparam", c.settings.DHParamPath))
	}
	for _, d := range directives {
		nginx.UpdateOrAddDirective(vh.Node, d)
	}
	c.tree.MarkDirty(vh.FilePath)
	c.refreshVHost(vh)
	return nil
}

// makeServerSSL gives a plain-HTTP server block its TLS listens,
// following what the block already binds. Listens on the HTTP port are
// mirrored onto the TLS port with host and family kept; a block
// listening elsewhere gets one generic TLS listen per address family
// it uses; a block with no listens at all first gets the implicit HTTP
// listen made explicit. The original plain listens stay, so the block
// keeps answering port 80 until a redirect is asked for.
func (c *Configurator) makeServerSSL(vh *nginx.VirtualHost) error {
	httpPort, tlsPort := c.settings.HTTPPort, c.settings.HTTPSPort
	_, hasIPv6Only := c.IPv6Info(tlsPort)

	if len(vh.Addrs) == 0 {
		if err := nginx.AddDirective(vh.Node, nginx.NewDirective("listen", httpPort), false); err != nil {
			return err
		}
		vh.Addrs = append(vh.Addrs, nginx.Addr{Port: httpPort})
	}

	var listens []*nginx.Directive
	for _, a := range vh.Addrs {
		if a.SSL || !a.ServesHTTPPort(httpPort) {
			continue
		}
		args := []string{a.WithPort(tlsPort).Endpoint(), "ssl"}
		if a.IPv6 && a.Host != "::" && !hasIPv6Only {
			// An explicit IPv6 address needs ipv6only=on so the listen
			// does not also claim the mapped IPv4 address, but nginx
			// allows the parameter on only one listen per port.
			args = append(args, "ipv6only=on")
			hasIPv6Only = true
		}
		listens = append(listens, nginx.NewDirective("listen", args...))
	}
	if len(listens) == 0 {
		ipv4, ipv6 := false, false
		for _, a := range vh.Addrs {
			if a.IPv6 {
				ipv6 = true
			} else {
				ipv4 = true
			}
		}
		if ipv4 {
			listens = append(listens, nginx.NewDirective("listen", tlsPort, "ssl"))
		}
		if ipv6 {
			listens = append(listens, nginx.NewDirective("listen", "[::]:"+tlsPort, "ssl"))
		}
	}

	for _, d := range listens {
		if err := nginx.AddDirective(vh.Node, d, false); err != nil {
			return err
		}
	}
	c.tree.MarkDirty(vh.FilePath)
	c.refreshVHost(vh)
	return nil
}
