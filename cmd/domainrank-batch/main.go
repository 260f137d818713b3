// domainrank-batch runs a domain list through the scrape pipeline locally,
// without the HTTP server: one browser, the same pool and scheduler, a
// progress bar, and a JSON results file at the end.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/engine"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/scheduler"
	"github.com/use-agent/domainrank/scraper"
	"github.com/use-agent/domainrank/vision"
)

func main() {
	domainsPath := flag.String("domains", "domains.txt", "file with one domain per line")
	proxiesPath := flag.String("proxies", "", "optional file with one ip:port[:user:pass] proxy per line, assigned round-robin")
	outputPath := flag.String("output", "results.json", "JSON results file")
	concurrency := flag.Int("concurrency", 0, "override the scheduler concurrency ceiling")
	flag.Parse()

	cfg := config.Load()
	if *concurrency > 0 {
		cfg.Scheduler.MaxActive = *concurrency
	}

	// Progress bar owns stderr; keep logs quiet unless asked for.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	domains, err := readLines(*domainsPath)
	if err != nil {
		fatal("read domains: %v", err)
	}
	if len(domains) == 0 {
		fatal("no domains in %s", *domainsPath)
	}

	var proxies []*models.Proxy
	if *proxiesPath != "" {
		lines, err := readLines(*proxiesPath)
		if err != nil {
			fatal("read proxies: %v", err)
		}
		for _, line := range lines {
			p, err := parseProxy(line)
			if err != nil {
				fatal("bad proxy line %q: %v", line, err)
			}
			proxies = append(proxies, p)
		}
	}

	session, err := engine.LaunchRodSession(cfg.Browser)
	if err != nil {
		fatal("launch browser: %v", err)
	}
	sessionPool := pool.New(session)
	defer sessionPool.Shutdown()

	workflow := scraper.New(sessionPool, vision.NewLocator(), cfg.Workflow)

	collector := newCollector(len(domains))
	sched := scheduler.New(workflow.Run, collector, cfg.Scheduler)

	fmt.Fprintf(os.Stderr, "scraping %d domains (concurrency %d, %d proxies)\n",
		len(domains), cfg.Scheduler.MaxActive, len(proxies))

	for i, domain := range domains {
		spec := models.JobSpec{Domain: domain}
		if len(proxies) > 0 {
			spec.Proxy = proxies[i%len(proxies)]
		}
		if _, err := sched.Submit(spec); err != nil {
			fatal("submit %s: %v", domain, err)
		}
	}

	<-collector.done
	if err := sched.Drain(context.Background()); err != nil {
		slog.Warn("drain failed", "error", err)
	}

	tasks, completed := collector.snapshot()
	if err := writeResults(*outputPath, tasks); err != nil {
		fatal("write results: %v", err)
	}
	fmt.Fprintf(os.Stderr, "done: %d/%d succeeded, results in %s\n",
		completed, len(domains), *outputPath)
}

// collector gathers terminal tasks and advances the progress bar; it
// closes done when every submitted domain has a terminal record.
type collector struct {
	bar  *progressbar.ProgressBar
	done chan struct{}

	mu      sync.Mutex
	tasks   []*models.Task
	pending int
}

func newCollector(total int) *collector {
	return &collector{
		bar:     progressbar.Default(int64(total), "scraping"),
		done:    make(chan struct{}),
		pending: total,
	}
}

func (c *collector) Record(task *models.Task) {
	c.mu.Lock()
	c.tasks = append(c.tasks, task)
	c.pending--
	finished := c.pending == 0
	c.mu.Unlock()

	_ = c.bar.Add(1)
	if finished {
		close(c.done)
	}
}

func (c *collector) snapshot() (tasks []*models.Task, completed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.State == models.TaskCompleted {
			completed++
		}
	}
	return c.tasks, completed
}

// parseProxy reads ip:port or ip:port:user:pass.
func parseProxy(s string) (*models.Proxy, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 4 {
		return nil, fmt.Errorf("want ip:port or ip:port:user:pass")
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("bad port: %w", err)
	}
	p := &models.Proxy{Host: parts[0], Port: port}
	if len(parts) == 4 {
		p.Username = parts[2]
		p.Password = parts[3]
	}
	return p, nil
}

// readLines returns non-empty, non-comment lines.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func writeResults(path string, tasks []*models.Task) error {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
