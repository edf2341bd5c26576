package monitoring

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"chy506r/sink"
)

// SampleJSON is one table row as served by /api/samples
type SampleJSON struct {
	Time string  `json:"time"`
	T1   float64 `json:"t1"`
	T2   float64 `json:"t2"`
}

// SamplesResponse is the body of /api/samples
type SamplesResponse struct {
	Output  string       `json:"output"`
	Samples []SampleJSON `json:"samples"`
}

// SamplesHandler serves the tail of the session's output table
type SamplesHandler struct {
	source Source
}

// NewSamplesHandler creates a new samples handler
func NewSamplesHandler(source Source) *SamplesHandler {
	return &SamplesHandler{
		source: source,
	}
}

// ServeHTTP handles sample requests
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s := h.source()
	if s == nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}

	path := s.Stats().Output
	if path == sink.Stdout {
		http.Error(w, "session writes to stdout", http.StatusNotFound)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	file, err := os.Open(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer file.Close()

	samples, err := sink.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}

	rows := make([]SampleJSON, 0, len(samples))
	for _, sample := range samples {
		rows = append(rows, SampleJSON{
			Time: sample.Time.String(),
			T1:   sample.Channel1,
			T2:   sample.Channel2,
		})
	}

	json.NewEncoder(w).Encode(SamplesResponse{
		Output:  path,
		Samples: rows,
	})
}
