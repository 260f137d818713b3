package models

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a scrape task.
// Transitions: Queued → Active → {Completed, Failed}.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskActive    TaskState = "active"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether the state is final.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Proxy is a structured proxy descriptor. The host:port pair doubles as
// the pool's context fingerprint, so two tasks sharing a proxy share an
// isolated browsing context.
type Proxy struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Server returns the proxy address in scheme://host:port form.
func (p *Proxy) Server() string {
	return fmt.Sprintf("http://%s:%d", p.Host, p.Port)
}

// Key returns the context fingerprint for this proxy.
func (p *Proxy) Key() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// JobSpec is one unit of submitted work: a domain plus an optional proxy.
// The string-or-object polymorphism of batch payloads is resolved into
// this shape once, at the API boundary.
type JobSpec struct {
	Domain string
	Proxy  *Proxy
}

// Metrics holds the three scraped values. Nil means the value was absent
// or unparseable on the page, never zero-by-default.
type Metrics struct {
	DomainRating    *int64 `json:"domain_rating"`
	Backlinks       *int64 `json:"backlinks"`
	LinkingWebsites *int64 `json:"linking_websites"`
}

// ScrapeResult is the success payload of one domain workflow.
type ScrapeResult struct {
	Domain        string        `json:"domain"`
	Metrics       Metrics       `json:"metrics"`
	FirstCaptcha  bool          `json:"captcha_1"`
	SecondCaptcha bool          `json:"captcha_2"`
	Elapsed       time.Duration `json:"-"`
	ElapsedSec    float64       `json:"elapsed"`
}

// Task is the bookkeeping record for one submitted domain.
// It is mutated only by the scheduler.
type Task struct {
	ID          string        `json:"task_id"`
	Domain      string        `json:"domain"`
	Proxy       *Proxy        `json:"-"`
	ProxyServer string        `json:"proxy,omitempty"`
	State       TaskState     `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"completed_at,omitempty"`
	Result      *ScrapeResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Snapshot returns a copy safe to hand outside the scheduler's lock.
func (t *Task) Snapshot() *Task {
	c := *t
	return &c
}

// PoolStats reports the state of the browser context pool.
type PoolStats struct {
	HasDefaultContext bool `json:"has_default_context"`
	NumProxyContexts  int  `json:"num_proxy_contexts"`
}

// SchedulerStats is an aggregate snapshot of task counts.
type SchedulerStats struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
