// Package ingest loads boundaries, parcels, yield gaps and statistics into the store.
//
// Every loader returns a Report. A bad record is recorded in the report and
// skipped; only problems that make the whole step impossible are returned as errors.
package ingest

import (
	"fmt"
	"log"
	"time"
)

// Outcome classifies what happened to a single record.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// RecordResult is the fate of one input record.
type RecordResult struct {
	Key     string  `json:"key"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Report accumulates the results of one load step.
type Report struct {
	Step     string         `json:"step"`
	Source   string         `json:"source"`
	Results  []RecordResult `json:"results"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
}

func newReport(step, source string) *Report {
	return &Report{Step: step, Source: source, Started: time.Now()}
}

func (r *Report) add(key string, o Outcome, reason string) {
	r.Results = append(r.Results, RecordResult{Key: key, Outcome: o, Reason: reason})
}

func (r *Report) created(key string) { r.add(key, Created, "") }
func (r *Report) updated(key string) { r.add(key, Updated, "") }

func (r *Report) skipped(key, format string, args ...any) {
	r.add(key, Skipped, fmt.Sprintf(format, args...))
}

// failed records a per-record error and logs it.
func (r *Report) failed(key string, err error) {
	r.add(key, Failed, err.Error())
	log.Printf("[%s] %s failed: %v", r.Step, key, err)
}

// Count returns the number of results with outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Stored is the number of records created or updated.
func (r *Report) Stored() int {
	return r.Count(Created) + r.Count(Updated)
}

func (r *Report) finish() *Report {
	r.Duration = time.Since(r.Started)
	log.Printf("[%s] %s: created=%d updated=%d skipped=%d failed=%d in %dms",
		r.Step, r.Source, r.Count(Created), r.Count(Updated), r.Count(Skipped), r.Count(Failed),
		r.Duration.Milliseconds())
	return r
}
