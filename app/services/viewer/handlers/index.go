package handlers

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ardanlabs/powledger/foundation/web"
)

//go:embed views/index.html
var indexHTML string

type index struct {
	tmpl      *template.Template
	eventsURL string
}

func newIndex(eventsURL string) (index, error) {
	tmpl, err := template.New("index").Parse(indexHTML)
	if err != nil {
		return index{}, fmt.Errorf("parse index: %w", err)
	}

	return index{tmpl: tmpl, eventsURL: eventsURL}, nil
}

func (ig index) handler(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	data := struct {
		EventsURL string
	}{
		EventsURL: ig.eventsURL,
	}
	if err := ig.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("execute index: %w", err)
	}

	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return web.NewShutdownError(err.Error())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())

	return err
}
