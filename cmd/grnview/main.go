// grnview serves the assembled regulatory network over HTTP for interactive
// review: an index of TFs with their regulon sizes, per-TF edge tables, the
// raw edge set as JSON, and any smoothed-curve PNGs produced upstream.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/cardiogenomics/fibronet"
	"github.com/cardiogenomics/fibronet/grn"
)

type Global struct {
	Site string
	log  *log.Logger

	EdgesPath string
	PlotDir   string

	edges   []grn.Edge
	summary grn.DegreeSummary
}

var global *Global

func main() {
	var edgesPath, plotDir string
	var port int

	flag.StringVar(&edgesPath, "edges", "", "Path (or URL) to the edge table written by grn.")
	flag.StringVar(&plotDir, "plots", "", "Optional directory of PNG plots to serve under /plots/.")
	flag.IntVar(&port, "port", 9019, "Port for the HTTP server.")
	flag.Parse()

	if edgesPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	edgeBytes, err := fibronet.OpenFileOrURL(edgesPath)
	if err != nil {
		log.Fatalln(err)
	}
	edges, err := grn.ReadEdges(edgeBytes)
	if err != nil {
		log.Fatalln(err)
	}
	summary, err := grn.Summarize(edges)
	if err != nil {
		log.Fatalln(err)
	}

	global = &Global{
		Site:      "GRNView",
		log:       log.New(os.Stderr, log.Prefix(), log.Ldate|log.Ltime),
		EdgesPath: edgesPath,
		PlotDir:   plotDir,
		edges:     edges,
		summary:   summary,
	}

	global.log.Println("Loaded", len(edges), "edges across", summary.TFs, "TFs")
	global.log.Println("Starting HTTP server on port", port)

	if err := http.ListenAndServe(fmt.Sprintf(`:%d`, port), router(global)); err != nil {
		log.Fatalln(err)
	}
}
