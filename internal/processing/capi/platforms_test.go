package capi

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/relaypath/edge/internal/processing/links"
)

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q) err = %v", raw, err)
	}
	return q
}

func TestTargetPlatforms(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		referer string
		want    []links.Platform
	}{
		{"no click ids", "utm_source=newsletter", "", nil},
		{"gclid targets google only", "gclid=abc", "", []links.Platform{links.PlatformGoogle}},
		{"wbraid targets google", "wbraid=abc", "", []links.Platform{links.PlatformGoogle}},
		{"gbraid targets google", "gbraid=abc", "", []links.Platform{links.PlatformGoogle}},
		{"ttclid targets tiktok", "ttclid=abc", "", []links.Platform{links.PlatformTikTok}},
		{"scid targets snapchat", "scid=abc", "", []links.Platform{links.PlatformSnapchat}},
		{"tblci targets taboola", "tblci=abc", "", []links.Platform{links.PlatformTaboola}},
		{"oglid targets outbrain", "oglid=abc", "", []links.Platform{links.PlatformOutbrain}},
		{
			"fbclid with facebook referer",
			"fbclid=abc", "https://l.facebook.com/l.php",
			[]links.Platform{links.PlatformMeta},
		},
		{
			"fbclid with instagram referer",
			"fbclid=abc", "https://l.instagram.com/",
			[]links.Platform{links.PlatformInstagram},
		},
		{
			"fbclid with utm_source ig",
			"fbclid=abc&utm_source=ig", "",
			[]links.Platform{links.PlatformInstagram},
		},
		{
			"fbclid ambiguous targets both",
			"fbclid=abc", "",
			[]links.Platform{links.PlatformInstagram, links.PlatformMeta},
		},
		{
			"mixed ids accumulate",
			"gclid=a&ttclid=b", "",
			[]links.Platform{links.PlatformGoogle, links.PlatformTikTok},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TargetPlatforms(parseQuery(t, tt.query), tt.referer)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("TargetPlatforms() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClickID(t *testing.T) {
	q := parseQuery(t, "fbclid=f&ttclid=t&wbraid=w&scid=s&dicbid=o&tglid=tb")

	tests := []struct {
		platform links.Platform
		want     string
	}{
		{links.PlatformMeta, "f"},
		{links.PlatformInstagram, "f"},
		{links.PlatformTikTok, "t"},
		{links.PlatformGoogle, "w"},
		{links.PlatformSnapchat, "s"},
		{links.PlatformOutbrain, "o"},
		{links.PlatformTaboola, "tb"},
	}

	for _, tt := range tests {
		if got := ClickID(tt.platform, q); got != tt.want {
			t.Errorf("ClickID(%s) = %q, want %q", tt.platform, got, tt.want)
		}
	}
}

func TestQualifyPixels(t *testing.T) {
	link := &links.Link{
		Pixels: []links.CapiPixel{
			{Platform: links.PlatformGoogle, PixelID: "G-1", CapiToken: "secret", Status: links.PixelActive},
			{Platform: links.PlatformMeta, PixelID: "M-1", Status: links.PixelActive},
			{Platform: links.PlatformTaboola, PixelID: "T-1", Status: links.PixelActive},
			{Platform: links.PlatformTikTok, PixelID: "TT-1", CapiToken: "secret", Status: links.PixelPaused},
		},
	}
	targets := []links.Platform{
		links.PlatformGoogle, links.PlatformMeta,
		links.PlatformTaboola, links.PlatformTikTok,
	}

	got := QualifyPixels(link, targets)

	ids := make([]string, 0, len(got))
	for _, px := range got {
		ids = append(ids, px.PixelID)
	}
	// Meta is dropped for the missing token, TikTok for being paused;
	// Taboola qualifies tokenless by protocol.
	want := []string{"G-1", "T-1"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("qualified pixels = %v, want %v", ids, want)
	}
}

func TestQualifyPixelsUntargetedPlatform(t *testing.T) {
	link := &links.Link{
		Pixels: []links.CapiPixel{
			{Platform: links.PlatformSnapchat, PixelID: "S-1", CapiToken: "secret", Status: links.PixelActive},
		},
	}

	if got := QualifyPixels(link, []links.Platform{links.PlatformGoogle}); len(got) != 0 {
		t.Fatalf("untargeted platform must not qualify, got %v", got)
	}
}
