package capi

import (
	"net/url"
	"sort"
	"strings"

	"github.com/relaypath/edge/internal/processing/links"
)

// clickIDParams maps each platform's click-identifier query parameter
// to the platform(s) it selects. A conversion is only sent to a
// platform whose identifier was actually present on the inbound URL.
var clickIDParams = map[string][]links.Platform{
	"ttclid": {links.PlatformTikTok},
	"gclid":  {links.PlatformGoogle},
	"wbraid": {links.PlatformGoogle},
	"gbraid": {links.PlatformGoogle},
	"scid":   {links.PlatformSnapchat},
	"oglid":  {links.PlatformOutbrain},
	"dicbid": {links.PlatformOutbrain},
	"tblci":  {links.PlatformTaboola},
	"tglid":  {links.PlatformTaboola},
}

// TargetPlatforms derives the set of platforms that should receive a
// conversion from the click-identifier parameters on the URL.
//
// fbclid is shared between Meta and Instagram and is resolved from the
// Referer, then utm_source. When neither disambiguates, BOTH platforms
// are targeted: over-sending is preferred to dropping the conversion.
func TargetPlatforms(query url.Values, referer string) []links.Platform {
	set := make(map[links.Platform]struct{}, 4)

	for param, platforms := range clickIDParams {
		if query.Get(param) != "" {
			for _, p := range platforms {
				set[p] = struct{}{}
			}
		}
	}

	if query.Get("fbclid") != "" {
		for _, p := range resolveMetaFamily(referer, query.Get("utm_source")) {
			set[p] = struct{}{}
		}
	}

	out := make([]links.Platform, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func resolveMetaFamily(referer, utmSource string) []links.Platform {
	ref := strings.ToLower(referer)
	if strings.Contains(ref, "instagram.com") {
		return []links.Platform{links.PlatformInstagram}
	}
	if strings.Contains(ref, "facebook.com") {
		return []links.Platform{links.PlatformMeta}
	}

	switch strings.ToLower(utmSource) {
	case "ig", "instagram":
		return []links.Platform{links.PlatformInstagram}
	case "fb", "facebook":
		return []links.Platform{links.PlatformMeta}
	}

	// Ambiguous origin: send to both rather than miss the conversion.
	return []links.Platform{links.PlatformInstagram, links.PlatformMeta}
}

// ClickID returns the platform's click identifier from the query, or
// "" when absent.
func ClickID(platform links.Platform, query url.Values) string {
	switch platform {
	case links.PlatformMeta, links.PlatformInstagram:
		return query.Get("fbclid")
	case links.PlatformTikTok:
		return query.Get("ttclid")
	case links.PlatformGoogle:
		for _, p := range []string{"gclid", "wbraid", "gbraid"} {
			if v := query.Get(p); v != "" {
				return v
			}
		}
		return ""
	case links.PlatformSnapchat:
		return query.Get("scid")
	case links.PlatformOutbrain:
		for _, p := range []string{"oglid", "dicbid"} {
			if v := query.Get(p); v != "" {
				return v
			}
		}
		return ""
	case links.PlatformTaboola:
		for _, p := range []string{"tblci", "tglid"} {
			if v := query.Get(p); v != "" {
				return v
			}
		}
		return ""
	}
	return ""
}

// QualifyPixels filters the link's active pixels down to those whose
// platform is targeted and whose protocol requirements are met.
// Taboola and Outbrain use a GET-only protocol and qualify without a
// token; every other platform requires one.
func QualifyPixels(link *links.Link, targets []links.Platform) []links.CapiPixel {
	targeted := make(map[links.Platform]struct{}, len(targets))
	for _, p := range targets {
		targeted[p] = struct{}{}
	}

	out := make([]links.CapiPixel, 0, len(targets))
	for _, px := range link.ActivePixels() {
		if _, ok := targeted[px.Platform]; !ok {
			continue
		}
		if px.CapiToken == "" && px.Platform != links.PlatformTaboola && px.Platform != links.PlatformOutbrain {
			continue
		}
		out = append(out, px)
	}
	return out
}
