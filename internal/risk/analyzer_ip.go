package risk

import (
	"context"
	"net/netip"
	"strings"
)

// GeoResolver maps an IP address to an ISO country code. Implementations may
// return an empty string when the origin is unknown.
type GeoResolver interface {
	Country(ip netip.Addr) string
}

// StaticGeoResolver resolves countries from a fixed prefix table. Used when
// no external geo database is wired in.
type StaticGeoResolver struct {
	prefixes map[netip.Prefix]string
}

// NewStaticGeoResolver builds a resolver from CIDR to country-code pairs.
// Invalid CIDRs are skipped.
func NewStaticGeoResolver(table map[string]string) *StaticGeoResolver {
	prefixes := make(map[netip.Prefix]string, len(table))
	for cidr, country := range table {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			continue
		}
		prefixes[prefix] = strings.ToUpper(country)
	}
	return &StaticGeoResolver{prefixes: prefixes}
}

func (r *StaticGeoResolver) Country(ip netip.Addr) string {
	for prefix, country := range r.prefixes {
		if prefix.Contains(ip) {
			return country
		}
	}
	return ""
}

// datacenterCIDRs covers well-known cloud provider ranges. A booking placed
// from a datacenter address is rarely a human guest.
var datacenterCIDRs = []string{
	"3.0.0.0/9",      // AWS
	"13.52.0.0/14",   // AWS us-west
	"18.130.0.0/16",  // AWS eu-west
	"34.64.0.0/10",   // GCP
	"35.184.0.0/13",  // GCP us-central
	"20.33.0.0/16",   // Azure
	"40.74.0.0/15",   // Azure
	"104.16.0.0/13",  // Cloudflare
	"128.199.0.0/16", // DigitalOcean
	"159.65.0.0/16",  // DigitalOcean
	"45.76.0.0/16",   // Vultr
	"172.104.0.0/15", // Linode
}

// IPAnalyzer scores the submission source address.
type IPAnalyzer struct {
	datacenters []netip.Prefix
	torExits    map[string]struct{}
	geo         GeoResolver
}

// NewIPAnalyzer creates an IP channel analyzer. torExits may be nil; geo may
// be nil when no geo source is configured.
func NewIPAnalyzer(torExits []string, geo GeoResolver) *IPAnalyzer {
	prefixes := make([]netip.Prefix, 0, len(datacenterCIDRs))
	for _, cidr := range datacenterCIDRs {
		if prefix, err := netip.ParsePrefix(cidr); err == nil {
			prefixes = append(prefixes, prefix)
		}
	}

	exits := make(map[string]struct{}, len(torExits))
	for _, ip := range torExits {
		exits[strings.TrimSpace(ip)] = struct{}{}
	}

	return &IPAnalyzer{datacenters: prefixes, torExits: exits, geo: geo}
}

func (a *IPAnalyzer) Channel() string { return ChannelIP }

func (a *IPAnalyzer) Analyze(_ context.Context, sub *Submission) Signal {
	raw := strings.TrimSpace(sub.IP)
	if raw == "" {
		return NewSignal(0, nil, nil)
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return NewSignal(10, []string{"Unparseable source IP"},
			map[string]interface{}{"invalid_ip": true})
	}

	// Internal and loopback traffic carries no signal.
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return NewSignal(0, nil, nil)
	}

	score := 0
	var reasons []string
	features := make(map[string]interface{})

	if _, ok := a.torExits[raw]; ok {
		score += 60
		reasons = append(reasons, "Tor exit node")
		features["tor_exit"] = true
	}

	for _, prefix := range a.datacenters {
		if prefix.Contains(addr) {
			score += 45
			reasons = append(reasons, "Datacenter IP address")
			features["datacenter_ip"] = true
			break
		}
	}

	if a.geo != nil && sub.CountryHint != "" {
		if country := a.geo.Country(addr); country != "" &&
			!strings.EqualFold(country, sub.CountryHint) {
			score += 25
			reasons = append(reasons, "IP country does not match booking region")
			features["geo_mismatch"] = true
		}
	}

	if len(features) == 0 {
		features = nil
	}
	return NewSignal(score, reasons, features)
}
