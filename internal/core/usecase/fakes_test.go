package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/pravinheroku/bse-automation/internal/core/domain"
	"github.com/pravinheroku/bse-automation/internal/core/ports"
)

type storedRow struct {
	status  domain.DisclosureStatus
	payload *domain.Payload
}

type fakeStore struct {
	mu   sync.Mutex
	rows map[string]*storedRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*storedRow)}
}

func (s *fakeStore) seed(id string, status domain.DisclosureStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[id] = &storedRow{status: status}
}

func (s *fakeStore) statusOf(id string) domain.DisclosureStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		return row.status
	}
	return ""
}

func (s *fakeStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok, nil
}

func (s *fakeStore) NeedsWork(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return ok && !row.status.Terminal(), nil
}

func (s *fakeStore) InsertPending(_ context.Context, cand domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[cand.ID]; !ok {
		s.rows[cand.ID] = &storedRow{status: domain.StatusPending}
	}
	return nil
}

func (s *fakeStore) MarkFetched(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok && row.status == domain.StatusPending {
		row.status = domain.StatusFetched
	}
	return nil
}

func (s *fakeStore) RecordResult(_ context.Context, id string, payload *domain.Payload, status domain.DisclosureStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		row = &storedRow{}
		s.rows[id] = row
	}
	if row.status == domain.StatusSummarized {
		return nil
	}
	row.status = status
	row.payload = payload
	return nil
}

type fakeSource struct {
	candidates []domain.Candidate
	err        error
}

func (s *fakeSource) List(context.Context, time.Time, time.Time) ([]domain.Candidate, error) {
	return s.candidates, s.err
}

type fakeResolver struct {
	mu    sync.Mutex
	urls  map[string]string
	errs  map[string]error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, id, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.errs[id]; ok {
		return "", err
	}
	return r.urls[id], nil
}

type fakePathFetcher struct {
	mu       sync.Mutex
	err      error
	fetched  []string
	released []string
}

func (f *fakePathFetcher) Fetch(_ context.Context, url, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.fetched = append(f.fetched, url)
	return "/scratch/" + url, nil
}

func (f *fakePathFetcher) Release(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, path)
}

type fakeExtractor struct {
	content domain.Content
	err     error
}

func (e *fakeExtractor) Extract(context.Context, string) (domain.Content, error) {
	return e.content, e.err
}

type fakeSummarizer struct {
	mu       sync.Mutex
	requests []ports.SummarizeRequest
	fn       func(ports.SummarizeRequest) (*domain.Payload, error)
}

func (s *fakeSummarizer) Summarize(_ context.Context, req ports.SummarizeRequest) (*domain.Payload, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	return &domain.Payload{Kind: domain.KindSummary, Company: req.Company, SourceURL: req.SourceURL}, nil
}

func (s *fakeSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	// failAt holds 1-based send positions that must fail.
	failAt map[int]error
	calls  int
}

func (n *fakeNotifier) Send(_ context.Context, notification domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if err, ok := n.failAt[n.calls]; ok {
		return err
	}
	n.sent = append(n.sent, notification)
	return nil
}

type fakeHistoricalStore struct {
	mu   sync.Mutex
	recs map[string]*domain.HistoricalRecord
	// setCalls counts SetPayloadOnce invocations.
	setCalls int
}

func newFakeHistoricalStore() *fakeHistoricalStore {
	return &fakeHistoricalStore{recs: make(map[string]*domain.HistoricalRecord)}
}

// day truncates to the date; the store compares priors at day
// granularity, so a same-day record is never a valid prior.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *fakeHistoricalStore) LatestBefore(_ context.Context, scripCode string, before time.Time) (*domain.HistoricalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *domain.HistoricalRecord
	for _, rec := range s.recs {
		if rec.ScripCode != scripCode || !day(rec.OccurredAt).Before(day(before)) {
			continue
		}
		if latest == nil || rec.OccurredAt.After(latest.OccurredAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *fakeHistoricalStore) Insert(_ context.Context, rec domain.HistoricalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; !ok {
		s.recs[rec.ID] = &rec
	}
	return nil
}

func (s *fakeHistoricalStore) SetPayloadOnce(_ context.Context, id string, payload *domain.Payload) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	rec, ok := s.recs[id]
	if !ok || rec.Payload != nil {
		return false, nil
	}
	rec.Payload = payload
	return true, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	published []string
}

func (e *fakeEvents) PublishProcessed(_ context.Context, id string, _ domain.DisclosureStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append(e.published, id)
	return nil
}
