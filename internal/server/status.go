package server

import (
	"html/template"
	"net/http"
	"sort"
	"time"

	"go-watchdog/internal/models"
)

var statusTemplate = template.Must(template.New("status").Funcs(template.FuncMap{
	"label": func(status int) string {
		if status == models.StatusUp {
			return "UP"
		}
		return "DOWN"
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}}</title>
	<meta http-equiv="refresh" content="10">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #1a1b26; color: #a9b1d6; padding: 20px; margin: 0; }
		h1 { text-align: center; color: #7aa2f7; margin-bottom: 10px; }
		.sub { text-align: center; color: #565f89; font-size: 0.85em; margin-bottom: 30px; }
		.container { max-width: 800px; margin: 0 auto; }
		.card { background: #24283b; padding: 20px; margin-bottom: 15px; border-radius: 8px; display: flex; align-items: center; justify-content: space-between; }
		.name { font-size: 1.2em; font-weight: bold; color: #c0caf5; margin-bottom: 5px; }
		.meta { font-size: 0.85em; color: #565f89; }
		.status { font-weight: bold; padding: 6px 12px; border-radius: 6px; min-width: 60px; text-align: center; color: #1a1b26; }
		.UP { background: #9ece6a; }
		.DOWN { background: #f7768e; }
	</style>
</head>
<body>
	<div class="container">
		<h1>{{.Title}}</h1>
		{{if .Cycle}}<div class="sub">Cycle {{.Cycle}} at {{.CheckedAt.Format "15:04:05"}}</div>{{else}}<div class="sub">Waiting for the first scan</div>{{end}}
		{{range .States}}
		<div class="card">
			<div>
				<div class="name">{{.Name}}</div>
				<div class="meta">{{.Mode}} | {{.Note}}</div>
			</div>
			<div class="status {{label .Status}}">{{label .Status}}</div>
		</div>
		{{end}}
	</div>
</body>
</html>`))

type statusPage struct {
	Title     string
	Cycle     int64
	CheckedAt time.Time
	States    []models.WatchdogState
}

func (s *Server) handleStatusPage(w http.ResponseWriter, _ *http.Request) {
	page := statusPage{Title: s.cfg.Title}
	if report, ok := s.snap.Latest(); ok {
		page.Cycle = report.Cycle
		page.CheckedAt = report.StartedAt
		page.States = append(page.States, report.States...)
	}

	// down first, then by name
	sort.Slice(page.States, func(i, j int) bool {
		a, b := page.States[i], page.States[j]
		if a.Status != b.Status {
			return a.Status == models.StatusDown
		}
		return a.Name < b.Name
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, page); err != nil {
		s.logger.Error("render status page failed", "err", err)
	}
}
