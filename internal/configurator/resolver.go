package configurator

import (
	"fmt"
	"net"
	"sort"
	"strings"

	nxerrors "github.com/ksyq12/nginxtls/internal/errors"
	"github.com/ksyq12/nginxtls/internal/logger"
	"github.com/ksyq12/nginxtls/internal/nginx"
)

// rankedMatch scores one vhost against a target domain: the winning
// name, its rank, and how many of the vhost's names matched within
// that rank. The score orders candidates and starts from the rank; the
// deployment path adds a penalty to plain-HTTP vhosts so a block
// already serving TLS wins when a domain has split server blocks.
type rankedMatch struct {
	vhost *nginx.VirtualHost
	name  string
	rank  nginx.MatchRank
	count int
	score int
}

// plainHTTPPenalty exceeds the regex rank, so on the deployment path
// the TLS preference outweighs name precedence.
const plainHTTPPenalty = 4

// rankVHosts scores every vhost's name set against the target and
// returns the matches ordered best score first, tree order within a
// score.
func (c *Configurator) rankVHosts(target string) []rankedMatch {
	return c.rankVHostsWhere(target, nil, false)
}

// rankVHostsPreferSSL ranks like rankVHosts but penalizes vhosts
// without TLS listens.
func (c *Configurator) rankVHostsPreferSSL(target string) []rankedMatch {
	return c.rankVHostsWhere(target, nil, true)
}

func (c *Configurator) rankVHostsWhere(target string, accept func(*nginx.VirtualHost) bool, preferSSL bool) []rankedMatch {
	var matches []rankedMatch
	for _, vh := range c.tree.VHosts() {
		if accept != nil && !accept(vh) {
			continue
		}
		name, rank, count := nginx.BestMatch(target, vh.Names)
		if rank == nginx.RankNoMatch {
			continue
		}
		score := int(rank)
		if preferSSL && !vh.SSL {
			score += plainHTTPPenalty
		}
		matches = append(matches, rankedMatch{vh, name, rank, count, score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score < matches[j].score })
	return matches
}

// bestOf picks the winner among ranked matches. Wildcard ranks prefer
// the vhost whose matched name is longest; exact and regex ranks keep
// tree order.
func bestOf(matches []rankedMatch) *rankedMatch {
	if len(matches) == 0 {
		return nil
	}
	best := matches[0]
	if best.rank == nginx.RankWildcardStart || best.rank == nginx.RankWildcardEnd {
		for _, m := range matches[1:] {
			if m.score == best.score && len(m.name) > len(best.name) {
				best = m
			}
		}
	}
	return &best
}

// regexPatterns collects every regex name matching the target across
// the regex-ranked vhosts, for ambiguity reporting.
func regexPatterns(target string, matches []rankedMatch) []string {
	var out []string
	for _, m := range matches {
		if m.rank != nginx.RankRegex {
			continue
		}
		out = append(out, nginx.RegexNames(target, m.vhost.Names)...)
	}
	return out
}

// FindVHost resolves exactly one vhost for a domain, without the
// deployment-time fallbacks. No match is an error, and so is a domain
// only reachable through several competing regex names; that makes it
// the right call for pure queries.
func (c *Configurator) FindVHost(domain string) (*nginx.VirtualHost, error) {
	matches := c.rankVHosts(domain)
	best := bestOf(matches)
	if best == nil {
		return nil, nxerrors.NoMatch(domain)
	}
	if best.rank == nginx.RankRegex {
		if patterns := regexPatterns(domain, matches); len(patterns) > 1 {
			return nil, nxerrors.Ambiguous(domain,
				fmt.Sprintf("several regex server names match: %s", strings.Join(patterns, ", ")))
		}
	}
	return best.vhost, nil
}

// FindBestVHosts resolves the vhosts a deployment for the domain
// targets. Wildcard domains go through candidate selection; otherwise
// the best name match wins and the configuration's default server is
// the fallback.
func (c *Configurator) FindBestVHosts(domain string) ([]*nginx.VirtualHost, error) {
	if nginx.IsWildcardDomain(domain) {
		vhosts, err := c.chooseWildcardVHosts(domain, true)
		if err != nil {
			return nil, err
		}
		if len(vhosts) == 0 {
			return nil, nxerrors.Precondition(
				fmt.Sprintf("no server blocks selected to deploy %s to", domain))
		}
		return vhosts, nil
	}
	vh, err := c.deployVHost(domain)
	if err != nil {
		return nil, err
	}
	return []*nginx.VirtualHost{vh}, nil
}

// deployVHost picks the single vhost a plain-domain deployment edits.
// Blocks already serving TLS are preferred, competing regex names keep
// the first and warn, and the default server catches domains nothing
// names.
func (c *Configurator) deployVHost(domain string) (*nginx.VirtualHost, error) {
	matches := c.rankVHostsPreferSSL(domain)
	if best := bestOf(matches); best != nil {
		if best.rank == nginx.RankRegex {
			if patterns := regexPatterns(domain, matches); len(patterns) > 1 {
				logger.Warn("%d regex server names match %s; keeping the first, %s",
					len(patterns), domain, best.name)
			}
		}
		return best.vhost, nil
	}
	return c.defaultDeployVHost(domain)
}

// defaultDeployVHost deploys to the configuration's default server.
// The default block itself is never edited: it is duplicated once per
// session, singleton listen parameters stripped, and the copy collects
// every domain deployed this way under one server_name.
func (c *Configurator) defaultDeployVHost(domain string) (*nginx.VirtualHost, error) {
	if c.newVHost == nil {
		def, err := c.findDefaultVHost()
		if err != nil {
			return nil, err
		}
		dup, err := c.duplicateVHost(def, true)
		if err != nil {
			return nil, err
		}
		c.newVHost = dup
	}
	c.recordDeployedName(domain)
	c.setServerNames(c.newVHost, c.deployedNames)
	return c.newVHost, nil
}

func (c *Configurator) recordDeployedName(domain string) {
	for _, n := range c.deployedNames {
		if n == domain {
			return
		}
	}
	c.deployedNames = append(c.deployedNames, domain)
}

// setServerNames rewrites the block's server_name directive and the
// derived view to the given names.
func (c *Configurator) setServerNames(vh *nginx.VirtualHost, names []string) {
	nginx.UpdateOrAddDirective(vh.Node, nginx.NewDirective("server_name", names...))
	vh.Names = append([]string(nil), names...)
	c.tree.MarkDirty(vh.FilePath)
}

// findDefaultVHost picks the configuration's default server: a
// default_server listen on the TLS port wins (a listen without a port
// counts as the HTTP port), then a sole default anywhere, then the
// first server block without a server_name the way pre-0.8.21
// configurations mark their catch-all.
func (c *Configurator) findDefaultVHost() (*nginx.VirtualHost, error) {
	vhosts := c.tree.VHosts()
	var all, onPort []*nginx.VirtualHost
	for _, vh := range vhosts {
		isDefault, portMatch := false, false
		for _, a := range vh.Addrs {
			if a.Default {
				isDefault = true
				port := a.Port
				if port == "" {
					port = c.settings.HTTPPort
				}
				if port == c.settings.HTTPSPort {
					portMatch = true
				}
			}
		}
		if isDefault {
			all = append(all, vh)
			if portMatch {
				onPort = append(onPort, vh)
			}
		}
	}
	if len(all) == 0 {
		for _, vh := range vhosts {
			if len(vh.Names) == 0 {
				all = append(all, vh)
				break
			}
		}
	}
	switch {
	case len(onPort) == 1:
		return onPort[0], nil
	case len(all) == 1:
		return all[0], nil
	case len(all) == 0:
		return nil, nxerrors.Misconfiguration(
			"no server block matches and none is marked default_server; add the domain to a server_name")
	}
	return nil, nxerrors.Misconfiguration(
		fmt.Sprintf("no server block matches and %d are marked default_server; add the domain to a server_name", len(all)))
}

// listensPlainHTTP reports whether the vhost accepts plain HTTP on the
// configured port: an explicit or implicit listen there without ssl,
// or no listen directives at all.
func (c *Configurator) listensPlainHTTP(vh *nginx.VirtualHost) bool {
	if len(vh.Addrs) == 0 {
		return true
	}
	for _, a := range vh.Addrs {
		if !a.SSL && a.ServesHTTPPort(c.settings.HTTPPort) {
			return true
		}
	}
	return false
}

// chooseWildcardVHosts resolves a wildcard domain to a set of vhosts.
// Every server name in the configuration is represented by one
// candidate, with preferred vhosts (TLS-enabled on the deploy path,
// plain HTTP on the redirect path) shadowing the rest; the injected
// selector narrows the final set. Selections are cached per domain so
// one session never asks twice.
func (c *Configurator) chooseWildcardVHosts(domain string, preferSSL bool) ([]*nginx.VirtualHost, error) {
	cache := c.wildcardVHosts
	prefer := func(vh *nginx.VirtualHost) bool { return vh.SSL }
	if !preferSSL {
		cache = c.wildcardRedirectVHosts
		prefer = func(vh *nginx.VirtualHost) bool { return !vh.SSL }
	}
	if cached, ok := cache[domain]; ok {
		return cached, nil
	}

	vhosts := c.tree.VHosts()
	byName := make(map[string]*nginx.VirtualHost)
	for _, vh := range vhosts {
		if !preferSSL && !c.listensPlainHTTP(vh) {
			continue
		}
		for _, name := range vh.Names {
			if prefer(vh) {
				byName[name] = vh
			} else if _, ok := byName[name]; !ok {
				byName[name] = vh
			}
		}
	}
	chosen := make(map[*nginx.VirtualHost]bool, len(byName))
	for _, vh := range byName {
		chosen[vh] = true
	}
	var candidates []*nginx.VirtualHost
	for _, vh := range vhosts {
		if chosen[vh] {
			candidates = append(candidates, vh)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected, err := c.Select(fmt.Sprintf("Which server blocks should %s cover?", domain), candidates)
	if err != nil {
		return nil, err
	}
	if len(selected) > 0 {
		cache[domain] = selected
	}
	return selected, nil
}

// AllNames returns every domain this configuration could plausibly
// answer for: server names ($hostname resolved), listen hosts that
// look like hostnames, and reverse DNS of public listen addresses.
// The result is filtered to names a certificate could cover and
// sorted.
func (c *Configurator) AllNames() []string {
	seen := make(map[string]bool)
	for _, vh := range c.tree.VHosts() {
		for _, name := range vh.Names {
			if name == "$hostname" {
				if host, err := c.Hostname(); err == nil {
					seen[host] = true
				}
				continue
			}
			seen[name] = true
		}
		for _, a := range vh.Addrs {
			host := a.Host
			if host == "" || host == "*" {
				continue
			}
			ip := net.ParseIP(host)
			if ip == nil {
				seen[host] = true
				continue
			}
			if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				continue
			}
			names, err := c.LookupAddr(host)
			if err != nil {
				logger.Debug("No reverse DNS for %s: %v", host, err)
				continue
			}
			for _, n := range names {
				seen[strings.TrimSuffix(n, ".")] = true
			}
		}
	}
	var out []string
	for name := range seen {
		if viableCertName(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// viableCertName filters AllNames output down to names a certificate
// could cover: at least two non-empty labels of letters, digits and
// hyphens, no wildcard or regex or variable forms.
func viableCertName(name string) bool {
	if !strings.Contains(name, ".") {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return false
		}
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// AuthVHosts returns the vhosts that answer for a domain, split into
// plain-HTTP and TLS servers. A block serving both appears in both
// lists.
func (c *Configurator) AuthVHosts(domain string) (httpVHosts, httpsVHosts []*nginx.VirtualHost) {
	for _, vh := range c.tree.VHosts() {
		if _, rank, _ := nginx.BestMatch(domain, vh.Names); rank == nginx.RankNoMatch {
			continue
		}
		if c.listensPlainHTTP(vh) {
			httpVHosts = append(httpVHosts, vh)
		}
		if vh.SSL {
			httpsVHosts = append(httpsVHosts, vh)
		}
	}
	return httpVHosts, httpsVHosts
}

// IPv6Info reports whether any vhost listens on IPv6 at all, and
// whether some IPv6 listen on the given port carries ipv6only=on.
func (c *Configurator) IPv6Info(port string) (active, ipv6only bool) {
	for _, vh := range c.tree.VHosts() {
		for _, a := range vh.Addrs {
			if !a.IPv6 {
				continue
			}
			active = true
			if a.IPv6Only && a.Port == port {
				ipv6only = true
			}
		}
	}
	return active, ipv6only
}
