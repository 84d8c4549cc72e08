package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"slices"
	"time"

	"github.com/sweeney/debounced/internal/debounce"
	"github.com/sweeney/debounced/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>debounced</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.bad { color: red; font-weight: bold; }
.busy { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>debounced <small>{{.InstanceID}}</small></h1>

<h2>Input</h2>
<table>
<tr><th>Raw</th><td id="raw">{{.Raw}}</td></tr>
<tr><th>Search term</th><td>{{.Search.Term}}{{if .Search.IsDebouncing}} <span class="busy">(debouncing)</span>{{end}}</td></tr>
<tr><th>Should search</th><td>{{yesno .Search.ShouldSearch}}</td></tr>
<tr><th>Validation</th><td class="{{if .Validation.IsValidating}}busy{{else if .Validation.IsValid}}ok{{else}}bad{{end}}">{{.Validation.Phase}}{{if .Validation.Error}}: {{.Validation.Error}}{{end}}</td></tr>
</table>

<h2>Persistence</h2>
<table>
<tr><th>Saving</th><td>{{yesno .Save.IsSaving}}</td></tr>
<tr><th>Unsaved changes</th><td class="{{if .Save.HasUnsavedChanges}}busy{{else}}ok{{end}}">{{yesno .Save.HasUnsavedChanges}}</td></tr>
<tr><th>Last saved</th><td>{{stamp .Save.LastSaved}}</td></tr>
{{if .Save.Err}}<tr><th>Last error</th><td class="bad">{{.Save.Err}}</td></tr>{{end}}
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Observed</th><td>{{.Counts.Observed}}</td></tr>
{{range .Fires}}<tr><th>{{.Kind}}</th><td>{{.Count}}</td></tr>
{{end}}<tr><th>Saves</th><td>{{.Counts.Saves}}</td></tr>
<tr><th>Save errors</th><td>{{.Counts.SaveErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Input</th><td>{{.Config.Input}}{{if eq .Config.Input "gpio"}} (pin {{.Config.Pin}}, poll {{.Config.PollMs}}ms){{end}}</td></tr>
<tr><th>Delay</th><td>{{.Config.DelayMs}}ms</td></tr>
<tr><th>Max wait</th><td>{{if eq .Config.MaxWaitMs 0}}none{{else}}{{.Config.MaxWaitMs}}ms{{end}}</td></tr>
<tr><th>Edges</th><td>leading={{yesno .Config.Leading}} trailing={{yesno .Config.Trailing}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type fireRow struct {
	Kind  debounce.Kind
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	kinds := make([]debounce.Kind, 0, len(snap.Counts.Fires))
	for k := range snap.Counts.Fires {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	fires := make([]fireRow, len(kinds))
	for i, k := range kinds {
		fires[i] = fireRow{Kind: k, Count: snap.Counts.Fires[k]}
	}

	// Snapshot has an Uptime method but the template needs a plain field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Fires  []fireRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Fires:    fires,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
