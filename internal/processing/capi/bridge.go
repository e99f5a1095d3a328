package capi

import (
	"html/template"
	"io"
	"time"

	"github.com/relaypath/edge/internal/processing/links"
)

// The bridge page fires each active pixel's client-side tag, then
// navigates to the final destination after a fixed delay. It replaces
// the immediate redirect whenever the link's tracking mode includes
// "pixel".
var bridgeTmpl = template.Must(template.New("bridge").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex,nofollow">
<title>Redirecting…</title>
{{- range .Pixels }}
{{- if or (eq .Platform "meta") (eq .Platform "instagram") }}
<script>
!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?
n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;
n.push=n;n.loaded=!0;n.version='2.0';n.queue=[];t=b.createElement(e);t.async=!0;
t.src=v;s=b.getElementsByTagName(e)[0];s.parentNode.insertBefore(t,s)}(window,
document,'script','https://connect.facebook.net/en_US/fbevents.js');
fbq('init', '{{ .PixelID }}');
fbq('track', '{{ .Event }}');
</script>
{{- else if eq .Platform "tiktok" }}
<script>
!function (w, d, t) {w.TiktokAnalyticsObject=t;var ttq=w[t]=w[t]||[];
ttq.push=ttq.push||function(){};ttq.load=function(e){var o=d.createElement("script");
o.async=!0;o.src="https://analytics.tiktok.com/i18n/pixel/events.js?sdkid="+e;
var a=d.getElementsByTagName("script")[0];a.parentNode.insertBefore(o,a)};
ttq.load('{{ .PixelID }}');ttq.push(['track','{{ .Event }}']);}(window, document, 'ttq');
</script>
{{- else if eq .Platform "google" }}
<script async src="https://www.googletagmanager.com/gtag/js?id={{ .PixelID }}"></script>
<script>
window.dataLayer = window.dataLayer || [];
function gtag(){dataLayer.push(arguments);}
gtag('js', new Date());
gtag('config', '{{ .PixelID }}');
gtag('event', '{{ .Event }}');
</script>
{{- else if eq .Platform "snapchat" }}
<script>
(function(e,t,n){if(e.snaptr)return;var a=e.snaptr=function(){a.handleRequest?
a.handleRequest.apply(a,arguments):a.queue.push(arguments)};a.queue=[];
var s='script';var r=t.createElement(s);r.async=!0;
r.src=n;var u=t.getElementsByTagName(s)[0];u.parentNode.insertBefore(r,u);})
(window,document,'https://sc-static.net/scevent.min.js');
snaptr('init', '{{ .PixelID }}');
snaptr('track', '{{ .Event }}');
</script>
{{- else if eq .Platform "taboola" }}
<script>
window._tfa = window._tfa || [];
window._tfa.push({notify: 'event', name: '{{ .Event }}', id: '{{ .PixelID }}'});
!function (t, f, a, x) {if (!document.getElementById(x)) {
t.async = 1;t.src = a;t.id=x;f.parentNode.insertBefore(t, f);}}
(document.createElement('script'), document.getElementsByTagName('script')[0],
'//cdn.taboola.com/libtrc/unip/{{ .PixelID }}/tfa.js', 'tb_tfa_script');
</script>
{{- else if eq .Platform "outbrain" }}
<script>
!function(_window, _document) {var OB_ADV_ID = '{{ .PixelID }}';
if (_window.obApi) {return;}var api = _window.obApi = function() {
api.dispatch ? api.dispatch.apply(api, arguments) : api.queue.push(arguments);};
api.version = '1.1';api.loaded = true;api.marketerId = OB_ADV_ID;api.queue = [];
var tag = _document.createElement('script');tag.async = true;
tag.src = '//amplify.outbrain.com/cp/obtp.js';
var script = _document.getElementsByTagName('script')[0];
script.parentNode.insertBefore(tag, script);}(window, document);
obApi('track', '{{ .Event }}');
</script>
{{- end }}
{{- end }}
</head>
<body>
<noscript><meta http-equiv="refresh" content="0;url={{ .Destination }}"></noscript>
<script>
setTimeout(function () { window.location.replace({{ .Destination }}); }, {{ .DelayMS }});
</script>
</body>
</html>
`))

type bridgePixel struct {
	Platform string
	PixelID  string
	Event    string
}

type bridgeData struct {
	Pixels      []bridgePixel
	Destination string
	DelayMS     int64
}

// RenderBridge writes the bridge HTML for the qualified pixels.
func RenderBridge(w io.Writer, pixels []links.CapiPixel, destination string, delay time.Duration) error {
	data := bridgeData{
		Destination: destination,
		DelayMS:     delay.Milliseconds(),
	}
	for _, px := range pixels {
		data.Pixels = append(data.Pixels, bridgePixel{
			Platform: string(px.Platform),
			PixelID:  px.PixelID,
			Event:    px.Event(),
		})
	}
	return bridgeTmpl.Execute(w, data)
}
