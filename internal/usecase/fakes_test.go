package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

type fakeGenerator struct {
	mu       sync.Mutex
	respond  func(req ports.GenerationRequest) (string, error)
	requests []ports.GenerationRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req ports.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGenerator) last() ports.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func replyWith(reply string) *fakeGenerator {
	return &fakeGenerator{respond: func(ports.GenerationRequest) (string, error) { return reply, nil }}
}

func failWith(err error) *fakeGenerator {
	return &fakeGenerator{respond: func(ports.GenerationRequest) (string, error) { return "", err }}
}

// routedGenerator answers each prompt kind with its own reply.
func routedGenerator(synthesis, ranking, teaser string) *fakeGenerator {
	return &fakeGenerator{respond: func(req ports.GenerationRequest) (string, error) {
		switch {
		case strings.HasPrefix(req.System, "You summarize"):
			return synthesis, nil
		case strings.HasPrefix(req.System, "You curate"):
			return ranking, nil
		default:
			return teaser, nil
		}
	}}
}

type fakeSource struct {
	items []domain.CandidateItem
	err   error
}

func (f fakeSource) Fetch(context.Context, time.Time, time.Duration) ([]domain.CandidateItem, error) {
	return f.items, f.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []ports.MailMessage
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg ports.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.messages = append(f.messages, digest)
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) RenderHTML(doc domain.DigestDocument) (string, error) {
	return "<p>" + doc.Intro + "</p>", nil
}

func (fakeRenderer) RenderText(doc domain.DigestDocument) string {
	var b strings.Builder
	b.WriteString(doc.Intro)
	for _, a := range doc.Articles {
		b.WriteString("\n" + a.Title)
	}
	return b.String()
}

type recordingMetrics struct {
	mu       sync.Mutex
	ingested map[domain.IngestOutcome]int
	synth    map[string]int
	rankings []bool
	runs     []domain.RunReport
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ingested: map[domain.IngestOutcome]int{}, synth: map[string]int{}}
}

func (r *recordingMetrics) ItemIngested(_ string, outcome domain.IngestOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested[outcome]++
}

func (r *recordingMetrics) DigestSynthesized(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synth[outcome]++
}

func (r *recordingMetrics) RankingCompleted(success bool, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings = append(r.rankings, success)
}

func (r *recordingMetrics) RunFinished(report domain.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, report)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
