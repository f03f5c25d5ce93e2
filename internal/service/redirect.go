package service

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RedirectPolicy decides whether a post-OAuth redirect target is safe.
// Relative paths are always allowed; absolute URLs must share the site's
// registered domain (eTLD+1), closing the open-redirect hole where a crafted
// redirect_to sends freshly minted tokens to a third party.
type RedirectPolicy struct {
	// SiteDomain is the product's host, e.g. app.coverforge.io. Empty
	// disables the absolute-URL allowance entirely.
	SiteDomain string
}

// Allow reports whether target is an acceptable redirect destination.
func (p RedirectPolicy) Allow(target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}

	// Scheme-relative URLs ("//evil.com/x") parse as relative but navigate
	// cross-origin, so reject them before the relative-path allowance.
	if strings.HasPrefix(target, "//") {
		return false
	}
	if strings.HasPrefix(target, "/") {
		return true
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}

	return p.sameRegisteredDomain(u.Hostname())
}

func (p RedirectPolicy) sameRegisteredDomain(host string) bool {
	site := strings.ToLower(strings.TrimSpace(p.SiteDomain))
	if site == "" {
		return false
	}
	host = strings.ToLower(host)

	siteBase, err := publicsuffix.EffectiveTLDPlusOne(site)
	if err != nil {
		// Bare hosts like "localhost" have no public suffix; fall back to
		// exact host comparison.
		return host == site
	}
	hostBase, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return hostBase == siteBase
}
