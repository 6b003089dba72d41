package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"eicr-vision/internal/domain/entity"
	"eicr-vision/internal/domain/port"
	apperrors "eicr-vision/internal/platform/errors"
)

func testImage(name string) entity.Image {
	return entity.Image{Data: []byte(name), MIMEType: "image/jpeg", Filename: name + ".jpg"}
}

type fakeCamera struct {
	mu       sync.Mutex
	active   bool
	startErr error
	starts   int
	stops    int
	frames   int
}

func (c *fakeCamera) Start(ctx context.Context, facing port.Facing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.startErr != nil {
		return c.startErr
	}
	c.active = true
	return nil
}

func (c *fakeCamera) Capture(ctx context.Context) (entity.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return entity.Image{}, errors.New("not started")
	}
	c.frames++
	return testImage(fmt.Sprintf("frame-%d", c.frames)), nil
}

func (c *fakeCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	c.active = false
	return nil
}

func (c *fakeCamera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// scriptedGate returns its results in order, then passes.
type scriptedGate struct {
	mu      sync.Mutex
	results []entity.QualityResult
	err     error
}

func (g *scriptedGate) Evaluate(ctx context.Context, img entity.Image) (entity.QualityResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return entity.QualityResult{Score: 0, Issues: []string{"broken"}}, g.err
	}
	if len(g.results) == 0 {
		return entity.PassingQuality(), nil
	}
	q := g.results[0]
	g.results = g.results[1:]
	return q, nil
}

type fakePreprocessor struct{ err error }

func (p fakePreprocessor) Process(img entity.Image) (entity.Image, error) {
	if p.err != nil {
		return img, p.err
	}
	img.Filename = "processed-" + img.Filename
	return img, nil
}

type fakeStorage struct {
	mu     sync.Mutex
	failOn string // filename that fails
	calls  []string
}

func (s *fakeStorage) Upload(ctx context.Context, img entity.Image) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, img.Filename)
	failOn := s.failOn
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img.Filename == failOn {
		return "", errors.New("bucket not found")
	}
	return "https://cdn.test/" + img.Filename, nil
}

func (s *fakeStorage) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    atomic.Int32
	requests []entity.AnalysisRequest
	result   *entity.AnalysisResult
	err      error
	block    bool // wait for ctx cancellation
	started  chan struct{}
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.requests = append(a.requests, req)
	result, err, block := a.result, a.err, a.block
	a.mu.Unlock()

	if block {
		if a.started != nil {
			close(a.started)
		}
		<-ctx.Done()
		return nil, apperrors.Wrap(apperrors.KindAnalysisTransport, "test.analyze", "request aborted", ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &entity.AnalysisResult{Findings: []entity.Finding{}}, nil
	}
	copied := *result
	return &copied, nil
}

func (a *fakeAnalyzer) set(result *entity.AnalysisResult, err error) {
	a.mu.Lock()
	a.result, a.err = result, err
	a.mu.Unlock()
}

func (a *fakeAnalyzer) lastRequest() entity.AnalysisRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

type fakeRemover struct{ err error }

func (r fakeRemover) Remove(ctx context.Context, img entity.Image) (entity.Image, error) {
	if r.err != nil {
		return entity.Image{}, r.err
	}
	img.Filename = "cutout-" + img.Filename
	img.MIMEType = "image/png"
	return img, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []entity.Notification
}

func (n *recordingNotifier) Notify(item entity.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
}

func (n *recordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.items))
	for _, it := range n.items {
		out = append(out, it.Title)
	}
	return out
}

func (n *recordingNotifier) Last() entity.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return entity.Notification{}
	}
	return n.items[len(n.items)-1]
}

type recordingMetrics struct {
	mu       sync.Mutex
	uploads  []bool
	outcomes []string
	quality  []float64
	warnings int
	exports  []bool
}

func (m *recordingMetrics) ObserveUpload(ok bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, ok)
}

func (m *recordingMetrics) ObserveAnalysis(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) ObserveQuality(score float64, warned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quality = append(m.quality, score)
	if warned {
		m.warnings++
	}
}

func (m *recordingMetrics) ObserveExport(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exports = append(m.exports, ok)
}

func (m *recordingMetrics) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

type fakeExporter struct{ err error }

func (e fakeExporter) Export(result *entity.AnalysisResult, _ time.Time) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []byte(fmt.Sprintf("%%PDF findings=%d", len(result.Findings))), nil
}

type memoryObservations struct {
	mu    sync.Mutex
	items []entity.Observation
}

func (s *memoryObservations) Add(ctx context.Context, obs entity.Observation) (entity.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs.ID = uint(len(s.items) + 1)
	s.items = append(s.items, obs)
	return obs, nil
}

func (s *memoryObservations) List(ctx context.Context, reportID string) ([]entity.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Observation
	for _, o := range s.items {
		if o.ReportID == reportID {
			out = append(out, o)
		}
	}
	return out, nil
}

func findingsResult(codes ...entity.EICRCode) *entity.AnalysisResult {
	findings := make([]entity.Finding, 0, len(codes))
	for i, code := range codes {
		findings = append(findings, entity.Finding{
			Description:   fmt.Sprintf("finding %d", i+1),
			EICRCode:      code,
			Confidence:    0.9,
			BS7671Clauses: []string{"411.3.3"},
			Location:      "consumer unit",
		})
	}
	return &entity.AnalysisResult{
		Findings:          findings,
		Recommendations:   []entity.Recommendation{},
		ComplianceSummary: entity.Summarize(findings, 6),
		Summary:           "test result",
	}
}
