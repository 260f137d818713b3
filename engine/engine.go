package engine

import (
	"context"
	"time"

	"github.com/use-agent/domainrank/models"
	"github.com/ysmood/gson"
)

// Session is one running browser process. The pool owns exactly one and
// shares it across all workflows.
type Session interface {
	// NewContext creates an isolated browsing context (own cookies,
	// storage, network identity), optionally bound to a proxy.
	//
	// Callers must serialize NewContext calls process-wide: the engine
	// corrupts its internal state (observed as an indefinite hang, not a
	// crash) when two context creations are in flight at once.
	NewContext(proxy *models.Proxy) (Context, error)

	// Close kills the browser process.
	Close() error
}

// Context is an isolated browsing scope shared by all workflows using the
// same proxy identity. Contexts live until pool shutdown.
type Context interface {
	// NewPage opens a fresh tab in this context. Like NewContext, page
	// creation must be serialized process-wide (its own gate, distinct
	// from the context-creation gate).
	NewPage() (Page, error)

	// Close disposes the context and every page still open in it.
	Close() error
}

// Page is one browser tab, used for exactly one domain's workflow.
// Every blocking operation carries an explicit timeout or context so no
// workflow can stall in the engine indefinitely.
type Page interface {
	// Navigate loads the URL and waits for the load event, bounded by
	// timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitNetworkIdle blocks until no requests have been in flight for a
	// short window, or timeout elapses (which is not an error: idleness
	// is a heuristic readiness signal, not a guarantee).
	WaitNetworkIdle(timeout time.Duration) error

	// Screenshot captures the current viewport as encoded image bytes.
	Screenshot() ([]byte, error)

	// Eval runs a JS function expression in the page and returns its value.
	Eval(js string) (gson.JSON, error)

	// Click dispatches a mouse click at viewport coordinates.
	Click(x, y float64) error

	// Close closes the tab. Idempotent.
	Close() error
}
