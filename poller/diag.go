package poller

import "fmt"

// State is the poll loop's lifecycle position.
type State string

const (
	StateIdle    State = "idle"
	StateSeeding State = "seeding"
	StatePolling State = "polling"
	StateStopped State = "stopped"
)

// Endpoint identifies the N3FJP instance being polled.
type Endpoint struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Transport string `json:"transport"`
}

// FetchDiag is the last observed result for one fetch kind.
type FetchDiag struct {
	Requested             int      `json:"requested"`
	TotalTimeout          float64  `json:"totalTimeout"`
	IdleTimeout           float64  `json:"idleTimeout"`
	LastAtUTC             string   `json:"lastAtUtc,omitempty"`
	ElapsedMs             int64    `json:"elapsedMs"`
	RawBytes              int      `json:"rawBytes"`
	RawHash               string   `json:"rawHash,omitempty"`
	Unchanged             bool     `json:"unchanged"`
	RecordsParsed         int      `json:"recordsParsed"`
	Added                 int      `json:"added"`
	Duplicates            int      `json:"duplicates"`
	Framing               string   `json:"framing,omitempty"`
	HasListResponseMarker bool     `json:"hasListResponseMarker"`
	HasListResponseClose  bool     `json:"hasListResponseClose"`
	SampleFields          []string `json:"sampleFields"`
	LastError             string   `json:"lastError,omitempty"`
}

// Diagnostics is the document served at /api/diag.
type Diagnostics struct {
	N3FJP     Endpoint   `json:"n3fjp"`
	State     State      `json:"state"`
	SessionID string     `json:"sessionId,omitempty"`
	SeedError string     `json:"seedError,omitempty"`
	PollError string     `json:"pollError,omitempty"`
	Seed      *FetchDiag `json:"seed"`
	Poll      *FetchDiag `json:"poll"`
}

// Diagnostics returns a copy of the current diagnostics. Seed and Poll are
// empty objects until the first fetch of that kind completes.
func (p *Poller) Diagnostics() Diagnostics {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	out := p.diag
	out.Seed = cloneFetchDiag(p.diag.Seed)
	out.Poll = cloneFetchDiag(p.diag.Poll)
	return out
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	return p.diag.State
}

func (p *Poller) setState(s State) {
	p.diagMu.Lock()
	p.diag.State = s
	p.diagMu.Unlock()
}

// recordTopError keeps the most recent error per kind. Like the per-kind
// lastError it is informational and never cleared by a later success.
func (p *Poller) recordTopError(kind string, err error) {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	switch kind {
	case KindSeed:
		p.diag.SeedError = err.Error()
	case KindPoll:
		p.diag.PollError = err.Error()
	}
}

func (p *Poller) storeFetchDiag(kind string, d FetchDiag) {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	switch kind {
	case KindSeed:
		p.diag.Seed = &d
	case KindPoll:
		p.diag.Poll = &d
	}
}

// carryParseStats copies parse results from the previous fetch of the same
// kind into d, used when the response was byte-identical and not re-parsed.
func (p *Poller) carryParseStats(kind string, d *FetchDiag) {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()
	prev := p.diag.Poll
	if kind == KindSeed {
		prev = p.diag.Seed
	}
	if prev == nil {
		return
	}
	d.RecordsParsed = prev.RecordsParsed
	d.Duplicates = prev.RecordsParsed
	if len(prev.SampleFields) > 0 {
		d.SampleFields = append([]string(nil), prev.SampleFields...)
	}
}

func cloneFetchDiag(d *FetchDiag) *FetchDiag {
	if d == nil {
		return &FetchDiag{SampleFields: []string{}}
	}
	c := *d
	c.SampleFields = append([]string{}, d.SampleFields...)
	return &c
}

func formatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
