package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/cardiogenomics/fibronet/grn"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

var templates = template.Must(template.ParseFS(embeddedTemplates, "templates/*.html"))

type handler struct {
	Global *Global
}

type Page struct {
	Title string
	Site  string
	Data  interface{}
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, title, tpl string, data interface{}) {
	page := Page{Title: title, Site: h.Global.Site, Data: data}

	if err := templates.ExecuteTemplate(w, tpl, page); err != nil {
		h.httpError(w, r, err)
	}
}

func (h *handler) renderJSON(w http.ResponseWriter, r *http.Request, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Global.log.Println(r.URL.Path, err)
	}
}

func (h *handler) httpError(w http.ResponseWriter, r *http.Request, err error) {
	h.Global.log.Println(r.URL.Path, err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type tfRow struct {
	TF      string
	Targets int
	Module  int
}

func (h *handler) Index(w http.ResponseWriter, r *http.Request) {
	byTF := make(map[string]*tfRow)
	for _, e := range h.Global.edges {
		row, exists := byTF[e.TF]
		if !exists {
			row = &tfRow{TF: e.TF, Module: e.Module}
			byTF[e.TF] = row
		}
		row.Targets++
	}

	rows := make([]tfRow, 0, len(byTF))
	for _, row := range byTF {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Targets > rows[j].Targets })

	output := struct {
		EdgesPath string
		Summary   grn.DegreeSummary
		TFs       []tfRow
		HasPlots  bool
	}{h.Global.EdgesPath, h.Global.summary, rows, h.Global.PlotDir != ""}

	h.render(w, r, h.Global.Site, "index.html", output)
}

func (h *handler) TF(w http.ResponseWriter, r *http.Request) {
	tf := mux.Vars(r)["tf"]

	edges := make([]grn.Edge, 0)
	for _, e := range h.Global.edges {
		if e.TF == tf {
			edges = append(edges, e)
		}
	}
	if len(edges) == 0 {
		h.httpError(w, r, fmt.Errorf("no edges for TF %q", tf))
		return
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Importance > edges[j].Importance })

	output := struct {
		TF    string
		Edges []grn.Edge
	}{tf, edges}

	h.render(w, r, tf, "tf.html", output)
}

func (h *handler) EdgesJSON(w http.ResponseWriter, r *http.Request) {
	h.renderJSON(w, r, h.Global.edges)
}

func (h *handler) ModulesJSON(w http.ResponseWriter, r *http.Request) {
	modules := make(map[int][]string)
	seen := make(map[string]bool)
	for _, e := range h.Global.edges {
		for _, node := range []string{e.TF, e.Gene} {
			key := fmt.Sprintf("%d/%s", e.Module, node)
			if !seen[key] {
				seen[key] = true
				modules[e.Module] = append(modules[e.Module], node)
			}
		}
	}
	for _, nodes := range modules {
		sort.Strings(nodes)
	}

	h.renderJSON(w, r, modules)
}
