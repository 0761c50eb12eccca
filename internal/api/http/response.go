package http

import (
	"github.com/GriffinCanCode/StreamSniffer/internal/domain/detect"
)

// Candidate is the wire form of an observed URL
type Candidate struct {
	URL      string `json:"url"`
	Source   string `json:"source"`
	OffsetMs int64  `json:"offsetMs"`
}

// DetectResponse is the wire form of a detection result
type DetectResponse struct {
	RunID       string             `json:"runId"`
	Succeeded   bool               `json:"succeeded"`
	Count       int                `json:"count"`
	Candidates  []Candidate        `json:"candidates"`
	Primary     *Candidate         `json:"primary"`
	ElapsedMs   int64              `json:"elapsedMs"`
	Diagnostics detect.Diagnostics `json:"diagnostics"`
}

// ErrorResponse is returned for every failed API call
type ErrorResponse struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
}

// NewCandidate converts an observed URL
func NewCandidate(o detect.ObservedURL) Candidate {
	return Candidate{
		URL:      o.URL,
		Source:   o.Source.String(),
		OffsetMs: o.OffsetMs(),
	}
}

// NewDetectResponse converts a detection result
func NewDetectResponse(r *detect.Result) DetectResponse {
	resp := DetectResponse{
		RunID:       r.RunID,
		Succeeded:   r.Succeeded,
		Count:       r.Count(),
		Candidates:  make([]Candidate, 0, r.Count()),
		ElapsedMs:   r.Elapsed.Milliseconds(),
		Diagnostics: r.Diagnostics,
	}
	for _, o := range r.Candidates {
		resp.Candidates = append(resp.Candidates, NewCandidate(o))
	}
	if r.Primary != nil {
		p := NewCandidate(*r.Primary)
		resp.Primary = &p
	}
	return resp
}
