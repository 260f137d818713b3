package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
	"github.com/ysmood/gson"
)

// fakeSession counts creations and flags any overlap, i.e. two creation
// calls observed in flight at the same time.
type fakeSession struct {
	ctxInFlight  atomic.Int32
	pageInFlight atomic.Int32

	ctxOverlap  atomic.Bool
	pageOverlap atomic.Bool

	contextsCreated atomic.Int32
	pagesCreated    atomic.Int32

	mu             sync.Mutex
	closed         bool
	contextsClosed int
}

func (s *fakeSession) NewContext(proxy *models.Proxy) (engine.Context, error) {
	if s.ctxInFlight.Add(1) > 1 {
		s.ctxOverlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond) // widen the race window
	s.ctxInFlight.Add(-1)
	s.contextsCreated.Add(1)
	return &fakeContext{session: s}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeContext struct {
	session *fakeSession
}

func (c *fakeContext) NewPage() (engine.Page, error) {
	if c.session.pageInFlight.Add(1) > 1 {
		c.session.pageOverlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond)
	c.session.pageInFlight.Add(-1)
	c.session.pagesCreated.Add(1)
	return &fakePage{}, nil
}

func (c *fakeContext) Close() error {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.session.contextsClosed++
	return nil
}

type fakePage struct{}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return nil
}
func (p *fakePage) WaitNetworkIdle(timeout time.Duration) error { return nil }
func (p *fakePage) Screenshot() ([]byte, error)                 { return nil, nil }
func (p *fakePage) Eval(js string) (gson.JSON, error)           { return gson.New(nil), nil }
func (p *fakePage) Click(x, y float64) error                    { return nil }
func (p *fakePage) Close() error                                { return nil }

func TestAcquireContextOnePerKey(t *testing.T) {
	session := &fakeSession{}
	p := New(session)

	proxy := &models.Proxy{Host: "10.0.0.1", Port: 8080}

	var wg sync.WaitGroup
	results := make([]engine.Context, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, err := p.AcquireContext(proxy)
			if err != nil {
				t.Errorf("AcquireContext: %v", err)
				return
			}
			results[i] = ctx
		}(i)
	}
	wg.Wait()

	if n := session.contextsCreated.Load(); n != 1 {
		t.Errorf("contexts created = %d, want 1", n)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("racing callers for one proxy must share a context")
		}
	}
}

func TestAcquireContextDistinctKeys(t *testing.T) {
	session := &fakeSession{}
	p := New(session)

	if _, err := p.AcquireContext(nil); err != nil {
		t.Fatalf("AcquireContext(nil): %v", err)
	}
	if _, err := p.AcquireContext(&models.Proxy{Host: "10.0.0.1", Port: 8080}); err != nil {
		t.Fatalf("AcquireContext(proxy): %v", err)
	}
	if _, err := p.AcquireContext(&models.Proxy{Host: "10.0.0.2", Port: 8080}); err != nil {
		t.Fatalf("AcquireContext(proxy2): %v", err)
	}

	if n := session.contextsCreated.Load(); n != 3 {
		t.Errorf("contexts created = %d, want 3", n)
	}
	stats := p.Stats()
	if !stats.HasDefaultContext || stats.NumProxyContexts != 2 {
		t.Errorf("stats = %+v, want default context and 2 proxy contexts", stats)
	}
}

func TestCreationGatesSerialize(t *testing.T) {
	session := &fakeSession{}
	p := New(session)

	// Distinct proxies force real context creations; pages come from the
	// same context. Neither kind of creation may ever overlap itself.
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			proxy := &models.Proxy{Host: "10.0.0.1", Port: 8000 + i}
			ctx, err := p.AcquireContext(proxy)
			if err != nil {
				t.Errorf("AcquireContext: %v", err)
				return
			}
			if _, err := p.OpenPage(ctx); err != nil {
				t.Errorf("OpenPage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if session.ctxOverlap.Load() {
		t.Error("two context creations overlapped")
	}
	if session.pageOverlap.Load() {
		t.Error("two page creations overlapped")
	}
	if n := session.pagesCreated.Load(); n != 6 {
		t.Errorf("pages created = %d, want 6", n)
	}
}

func TestShutdownClosesEverythingOnce(t *testing.T) {
	session := &fakeSession{}
	p := New(session)

	p.AcquireContext(nil)
	p.AcquireContext(&models.Proxy{Host: "10.0.0.1", Port: 8080})

	p.Shutdown()
	p.Shutdown() // idempotent

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.contextsClosed != 2 {
		t.Errorf("contexts closed = %d, want 2", session.contextsClosed)
	}
	if !session.closed {
		t.Error("session not closed")
	}
}

func TestAcquireAfterShutdownFails(t *testing.T) {
	p := New(&fakeSession{})
	p.Shutdown()

	if _, err := p.AcquireContext(nil); err == nil {
		t.Fatal("AcquireContext after Shutdown must fail")
	}
}
