// Command metadata-mock serves canned title metadata for local development.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/screen-catalog/internal/logging"
)

type titleEntry struct {
	Name        string  `json:"name"`
	Overview    *string `json:"overview"`
	Poster      *string `json:"poster"`
	Trailer     *string `json:"trailer"`
	ReleaseDate *string `json:"releaseDate"`
}

func main() {
	var (
		port   = flag.String("port", "9099", "port to listen on")
		data   = flag.String("data", "mock-metadata.json", "path to mock data file")
		apiKey = flag.String("api-key", "", "require this X-API-Key header when set")
		level  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(*level)
	if err != nil {
		panic(err)
	}
	logger = logger.With(zap.String("component", "metadata-mock"))
	defer func() { _ = logger.Sync() }()

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal("read mock data", zap.Error(err))
	}

	var entries []titleEntry
	if err := json.Unmarshal(file, &entries); err != nil {
		logger.Fatal("parse mock data", zap.Error(err))
	}
	byName := make(map[string]titleEntry, len(entries))
	for _, e := range entries {
		byName[strings.ToLower(e.Name)] = e
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /titles", func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		name := r.URL.Query().Get("name")
		entry, ok := byName[strings.ToLower(name)]
		logger.Debug("lookup", zap.String("name", name), zap.Bool("hit", ok))
		if !ok {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	logger.Info("mock metadata listening", zap.String("addr", addr), zap.Int("entries", len(byName)))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
