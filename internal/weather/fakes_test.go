package weather

import (
	"context"
	"errors"
	"sync"

	"github.com/yegors/co-wx/internal/physics"
)

type reply struct {
	resp Response
	err  error
}

func replyOK(body string) reply {
	return reply{resp: Response{StatusCode: 200, Body: body}}
}

func replyStatus(code int, body string) reply {
	return reply{resp: Response{StatusCode: code, Body: body}}
}

func replyErr(msg string) reply {
	return reply{err: errors.New(msg)}
}

// scriptedSession replays replies in order and repeats the last one
type scriptedSession struct {
	mu       sync.Mutex
	replies  []reply
	urls     []string
	disabled int
	closed   bool
}

func (s *scriptedSession) Get(_ context.Context, url string) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.urls)
	s.urls = append(s.urls, url)
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i].resp, s.replies[i].err
}

func (s *scriptedSession) DisableRevocationCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled++
}

func (s *scriptedSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *scriptedSession) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

type scriptedRequester struct {
	session  *scriptedSession
	sessions int
}

func (r *scriptedRequester) NewSession() Session {
	r.sessions++
	return r.session
}

func script(replies ...reply) *scriptedRequester {
	return &scriptedRequester{session: &scriptedSession{replies: replies}}
}

// recordingSink keeps every observation it receives
type recordingSink struct {
	mu  sync.Mutex
	got []Observation
}

func (s *recordingSink) SetWeather(obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, obs)
}

func (s *recordingSink) observations() []Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Observation(nil), s.got...)
}

type panickingSink struct{}

func (panickingSink) SetWeather(Observation) { panic("sink exploded") }

// fixedPosition is a PositionSource that can be moved by tests
type fixedPosition struct {
	mu  sync.Mutex
	pos physics.Position
}

func (f *fixedPosition) ViewPosition() physics.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *fixedPosition) set(lat, lon float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = physics.Position{Latitude: lat, Longitude: lon}
}
