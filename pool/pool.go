// Package pool owns the browser session and its isolated browsing contexts.
//
// The underlying engine hangs indefinitely (no crash, no error) when two
// context-creation calls or two page-creation calls are in flight at the
// same time. The pool therefore funnels those two operations through two
// independent mutual-exclusion gates, held only for the duration of the
// creation call itself. Navigation, screenshots and DOM evaluation, the
// bulk of wall-clock time, still run fully concurrently across pages.
package pool

import (
	"log/slog"
	"sync"

	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
)

// defaultKey is the sentinel context key for proxy-less tasks.
const defaultKey = "no-proxy"

// SessionPool maps proxy identities to long-lived isolated contexts within
// one browser session. At most one context exists per distinct proxy key;
// contexts are never destroyed mid-run, only at Shutdown.
type SessionPool struct {
	session engine.Session

	mu       sync.RWMutex // guards contexts and closed
	contexts map[string]engine.Context
	closed   bool

	// The two process-wide creation gates. Neither is ever acquired
	// while holding the other.
	ctxGate  sync.Mutex
	pageGate sync.Mutex

	shutdownOnce sync.Once
}

// New creates a SessionPool around an already-launched session.
func New(session engine.Session) *SessionPool {
	return &SessionPool{
		session:  session,
		contexts: make(map[string]engine.Context),
	}
}

func contextKey(proxy *models.Proxy) string {
	if proxy == nil {
		return defaultKey
	}
	return proxy.Key()
}

// AcquireContext returns the shared context for the given proxy identity,
// creating it on first demand. Creation is serialized through the
// context-creation gate; racing callers for the same key get the same
// context (the loser of the race finds it in the registry).
func (p *SessionPool) AcquireContext(proxy *models.Proxy) (engine.Context, error) {
	key := contextKey(proxy)

	p.mu.RLock()
	ctx, ok := p.contexts[key]
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, models.NewScrapeError(models.ErrCodeEngine, "pool is shut down", nil)
	}
	if ok {
		return ctx, nil
	}

	p.ctxGate.Lock()
	defer p.ctxGate.Unlock()

	// Double-check under the gate: a racing caller may have created it.
	p.mu.RLock()
	ctx, ok = p.contexts[key]
	p.mu.RUnlock()
	if ok {
		return ctx, nil
	}

	slog.Info("creating browser context", "key", key)
	ctx, err := p.session.NewContext(proxy)
	if err != nil {
		// Creation failed; the pool's bookkeeping is untouched and the
		// next caller for this key will retry.
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = ctx.Close()
		return nil, models.NewScrapeError(models.ErrCodeEngine, "pool is shut down", nil)
	}
	p.contexts[key] = ctx
	total := len(p.contexts)
	p.mu.Unlock()

	slog.Info("browser context ready", "key", key, "totalContexts", total)
	return ctx, nil
}

// OpenPage creates a new page inside the given context, serialized through
// the page-creation gate. A context lookup never needs this gate, so an
// unrelated AcquireContext can proceed concurrently.
func (p *SessionPool) OpenPage(ctx engine.Context) (engine.Page, error) {
	p.pageGate.Lock()
	defer p.pageGate.Unlock()
	return ctx.NewPage()
}

// Stats returns a read-only snapshot of the context registry.
func (p *SessionPool) Stats() models.PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, hasDefault := p.contexts[defaultKey]
	n := len(p.contexts)
	if hasDefault {
		n--
	}
	return models.PoolStats{
		HasDefaultContext: hasDefault,
		NumProxyContexts:  n,
	}
}

// Shutdown closes every tracked context, then the browser session.
// Idempotent: subsequent calls are no-ops.
func (p *SessionPool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		contexts := p.contexts
		p.contexts = make(map[string]engine.Context)
		p.mu.Unlock()

		for key, ctx := range contexts {
			if err := ctx.Close(); err != nil {
				slog.Warn("failed to close context", "key", key, "error", err)
			}
		}
		if err := p.session.Close(); err != nil {
			slog.Warn("failed to close browser session", "error", err)
		}
		slog.Info("session pool shut down", "contextsClosed", len(contexts))
	})
}
