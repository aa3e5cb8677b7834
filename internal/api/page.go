package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/offsetcheck/internal/review"
)

type annotationGroup struct {
	Annotation int
	Text       string
	StartMs    int64
	EndMs      int64
	Frames     []FrameResponse
}

type pageData struct {
	Session *SessionResponse
	Groups  []annotationGroup
}

var pageTemplate = template.Must(template.New("review").Funcs(template.FuncMap{
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.Bytes(uint64(n))
	},
	"secs": func(ms int64) string {
		return humanize.FormatFloat("#.###", float64(ms)/1000)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{if .Session}}{{.Session.Filename}}{{else}}offsetcheck{{end}}</title>
<style>
body { font-family: sans-serif; margin: 1.5em; }
.group { margin-bottom: 1.5em; }
.frames { display: flex; flex-wrap: wrap; gap: 0.5em; }
figure { margin: 0; }
img { max-width: 420px; border: 1px solid #ccc; }
button { font-size: 1.2em; padding: 0.4em 1.2em; margin-right: 0.5em; }
#status { margin-left: 1em; }
</style>
</head>
<body>
{{if .Session}}
<h1>{{.Session.Filename}}</h1>
<p>{{.Session.Remaining}} of {{.Session.Eligible}} eligible transcripts left &middot; {{bytes .Session.Size}} &middot; {{.Session.Targets}} target annotations &middot; {{len .Session.Frames}}/{{.Session.Attempted}} frames &middot; {{.Session.Policy}}</p>
{{if not .Session.Recordings}}<p><strong>No recordings found for this transcript.</strong></p>{{end}}
<div>
<textarea id="notes" rows="2" cols="60" placeholder="notes"></textarea><br>
<button onclick="decide('accept')">Accept</button>
<button onclick="decide('reject')">Reject</button>
<span id="status"></span>
</div>
{{range .Groups}}
<div class="group">
<h3>#{{.Annotation}} &middot; {{secs .StartMs}}s to {{secs .EndMs}}s &middot; {{.Text}}</h3>
<div class="frames">
{{range .Frames}}<figure><img src="{{.URL}}" alt="{{.Recording}} {{.Sample}}"><figcaption>{{.Recording}} &middot; {{.Sample}} &middot; <a href="{{.PlayURL}}" target="_blank">{{secs .TimeMs}}s</a></figcaption></figure>
{{end}}
</div>
</div>
{{end}}
<script>
function decide(decision) {
  fetch('/record_decision', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({filename: {{.Session.Filename}}, decision: decision, notes: document.getElementById('notes').value})
  }).then(function (r) { return r.json(); }).then(function (body) {
    document.getElementById('status').textContent = body.status === 'success' ? 'saved: ' + decision : (body.error || 'failed');
    if (body.status === 'success') { setTimeout(function () { location.reload(); }, 1500); }
  });
}
</script>
{{else}}
<h1>No review in progress</h1>
<script>setTimeout(function () { location.reload(); }, 3000);</script>
{{end}}
</body>
</html>
`))

func groupFrames(frames []FrameResponse) []annotationGroup {
	var groups []annotationGroup
	for _, f := range frames {
		if n := len(groups); n == 0 || groups[n-1].Annotation != f.Annotation {
			groups = append(groups, annotationGroup{
				Annotation: f.Annotation,
				Text:       f.Text,
				StartMs:    f.StartMs,
				EndMs:      f.EndMs,
			})
		}
		g := &groups[len(groups)-1]
		g.Frames = append(g.Frames, f)
	}
	return groups
}

func renderPage(r *review.Review) ([]byte, error) {
	var data pageData
	if r != nil {
		resp := SessionToResponse(r)
		data.Session = &resp
		data.Groups = groupFrames(resp.Frames)
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rv *review.Review
		if a := s.current(); a != nil {
			rv = a.review
		}
		body, err := renderPage(rv)
		if err != nil {
			s.logger.Error("failed to render review page", "error", err)
			WriteError(w, http.StatusInternalServerError, "render failed", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}
