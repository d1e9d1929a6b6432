// downloader fetches the pipeline's input artifacts (count matrices,
// embeddings, deviation scores, motif hits) to a local cache directory.
// The manifest is a two-column TSV of artifact name and URL.
package main

import (
	"encoding/csv"
	"flag"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cardiogenomics/fibronet"
)

func main() {
	var manifestPath, outDir string
	var concurrency int

	flag.StringVar(&manifestPath, "manifest", "", "Path to a TSV manifest: artifact_name<TAB>url, one per line.")
	flag.StringVar(&outDir, "out", "artifacts", "Directory where artifacts will be cached.")
	flag.IntVar(&concurrency, "concurrency", 4, "Number of simultaneous downloads.")
	flag.Parse()

	if manifestPath == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	f, err := os.Open(fibronet.ExpandHome(manifestPath))
	if err != nil {
		log.Fatalln(err)
	}

	c := csv.NewReader(f)
	c.Comma = '\t'
	c.Comment = '#'

	entries, err := c.ReadAll()
	if err != nil {
		log.Fatalln(err)
	}
	f.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalln(err)
	}

	log.Println("Using up to", concurrency, "simultaneous downloads")

	sem := make(chan bool, concurrency)

	for i, row := range entries {
		if len(row) != 2 {
			log.Fatalf("Manifest line %d has %d fields, want 2\n", i+1, len(row))
		}

		name, url := row[0], row[1]
		dest := filepath.Join(outDir, name)

		// If we already downloaded this file, skip it
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			log.Println(i, len(entries), "Already downloaded", name)
			continue
		}

		log.Println(i, len(entries), "Downloading", name)

		sem <- true
		go func(name, url, dest string) {
			defer func() { <-sem }()

			for attempt := 0; attempt < 3; attempt++ {
				fileBytes, err := fibronet.OpenFileOrURL(url)
				if err != nil {
					log.Println(name, ":", err)
					log.Println("Sleeping 30 seconds and retrying")
					time.Sleep(30 * time.Second)
					continue
				}

				if err := os.WriteFile(dest, fileBytes, 0o644); err != nil {
					log.Println(name, ":", err)
					return
				}

				return
			}

			log.Println(name, ": giving up after 3 attempts")
		}(name, url, dest)
	}

	for i := 0; i < cap(sem); i++ {
		sem <- true
	}

	log.Println("Done")
}
