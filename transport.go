package feeder

import (
	"context"
)

// Record is one opaque log payload. Strings and byte slices are delivered
// unchanged, anything else must be JSON serialisable.
type Record any

// Client is the live handle returned by Transport.Configure. It is only
// meaningful to the transport that created it.
type Client any

type Transport interface {
	// Configure performs all I/O needed before the first Send and returns
	// the client every Send must be given. It is called once per transport.
	Configure(ctx context.Context) (Client, error)

	// Send delivers one record through c. Backends never retry or reconnect.
	Send(ctx context.Context, c Client, r Record) error

	// Close releases whatever Configure acquired. It is safe to call when
	// Configure was never called or failed part-way.
	Close()
}

// Verifier is implemented by transports with an independent read-side view
// of the data they delivered.
type Verifier interface {
	// Verify waits for the transport's settle interval and reports how many
	// records became visible since Configure.
	Verify(ctx context.Context) (*Report, error)
}

// Row is one label/value line of a Report.
type Row struct {
	Label string
	Value int64
}

// Report is an ordered delivery summary.
type Report struct {
	Rows []Row
}

// countReport builds the before/after/written rows shared by the counting
// backends.
func countReport(unit string, before, after int64) *Report {
	return &Report{Rows: []Row{
		{Label: unit + " before", Value: before},
		{Label: unit + " after", Value: after},
		{Label: unit + " written", Value: after - before},
	}}
}

// Get returns the value of the first row labelled label.
func (r *Report) Get(label string) (int64, bool) {
	if r == nil {
		return 0, false
	}
	for _, row := range r.Rows {
		if row.Label == label {
			return row.Value, true
		}
	}
	return 0, false
}
