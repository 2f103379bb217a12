package server

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/formengine/internal/activity"
	"github.com/matthewbaird/formengine/internal/form"
	"github.com/matthewbaird/formengine/internal/wire"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Name}}</title></head>
<body>
<form id="{{.Name}}" data-ws="/api/form/ws" data-valid="{{.Valid}}">
{{range .Fields}}{{if not .Hidden}}{{.HTML}}
{{end}}{{end}}</form>
</body>
</html>
`))

type pageData struct {
	Name   string
	Valid  bool
	Fields []pageField
}

type pageField struct {
	Hidden bool
	HTML   template.HTML
}

func (s *Server) getDefinition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Definition)
}

// renderForm renders a fresh instance once its mount evaluations settle.
func (s *Server) renderForm(w http.ResponseWriter, r *http.Request) {
	f, props, err := s.NewForm()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "FORM_ERROR", err.Error())
		return
	}
	defer f.Close()
	props.Handle = &form.Handle{}

	if _, err := f.Render(props); err != nil {
		writeError(w, http.StatusInternalServerError, "RENDER_ERROR", err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := f.Engine().Wait(ctx); err != nil {
		log.Printf("render: %s did not settle: %v", f.Name(), err)
	}
	rendered, err := f.Render(props)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "RENDER_ERROR", err.Error())
		return
	}

	data := wire.RenderFields(f.Configs(), rendered, props.Handle)
	out := pageData{Name: f.Name(), Valid: data.Valid}
	for _, fd := range data.Fields {
		out.Fields = append(out.Fields, pageField{Hidden: fd.Hidden, HTML: template.HTML(fd.HTML)})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, out); err != nil {
		log.Printf("render: executing page: %v", err)
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.cfg.Sessions.List(),
	})
}

func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Activity == nil {
		writeError(w, http.StatusNotFound, "NOT_ENABLED", "session history is not enabled")
		return
	}
	id := chi.URLParam(r, "id")

	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	opts.Limit = parseLimit(r, opts.Limit)
	opts.Cursor = q.Get("cursor")
	opts.Field = q.Get("field")
	if v := q.Get("type"); v != "" {
		opts.Types = strings.Split(v, ",")
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SINCE", "since must be RFC 3339: "+v)
			return
		}
		opts.Since = &since
	}

	entries, next, total, err := s.cfg.Activity.Query(r.Context(), id, opts)
	if err != nil {
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":      entries,
		"next_cursor": next,
		"total":       total,
	})
}
