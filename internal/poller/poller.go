// Package poller keeps a scan status fresh by fetching it on a fixed
// interval until the scan reaches a terminal state.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/scanfix/internal/models"
)

// DefaultInterval is the status fetch period.
const DefaultInterval = 5 * time.Second

// Fetcher returns the current snapshot of a scan.
type Fetcher interface {
	GetScan(ctx context.Context, scanID string) (*models.ScanRecord, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, scanID string) (*models.ScanRecord, error)

// GetScan implements Fetcher.
func (f FetcherFunc) GetScan(ctx context.Context, scanID string) (*models.ScanRecord, error) {
	return f(ctx, scanID)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the fetch period.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithOnUpdate registers a callback for every successful status fetch.
// It runs on the polling goroutine.
func WithOnUpdate(fn func(models.ScanRecord)) Option {
	return func(p *Poller) { p.onUpdate = fn }
}

// WithOnCompleted registers a callback run once per scan id when the scan
// completes, used to trigger the dependent vulnerability and file fetches.
func WithOnCompleted(fn func(ctx context.Context, scan models.ScanRecord)) Option {
	return func(p *Poller) { p.onCompleted = fn }
}

// WithLogf sets the hook that receives skipped poll failures.
func WithLogf(fn func(format string, args ...interface{})) Option {
	return func(p *Poller) { p.logf = fn }
}

// Poller owns at most one polling goroutine at a time.
type Poller struct {
	fetch       Fetcher
	interval    time.Duration
	onUpdate    func(models.ScanRecord)
	onCompleted func(ctx context.Context, scan models.ScanRecord)
	logf        func(format string, args ...interface{})

	// runMu serializes Start and Stop.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	scanID string

	mu       sync.Mutex
	terminal map[string]models.ScanStatus
}

// New creates a Poller over fetch.
func New(fetch Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetch:    fetch,
		interval: DefaultInterval,
		terminal: make(map[string]models.ScanStatus),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling scanID if initial is pending or running. Any previous
// run is cancelled first. It returns false without polling when the status
// is already terminal or this Poller has already seen the scan finish.
func (p *Poller) Start(ctx context.Context, scanID string, initial models.ScanStatus) bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.stopLocked()

	if !initial.IsActive() || p.isTerminal(scanID) {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.scanID = scanID

	go p.run(runCtx, scanID, done)
	return true
}

// Stop cancels the active run, if any, and waits for it to exit.
func (p *Poller) Stop() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.stopLocked()
}

// Done returns a channel closed when the current run exits. With no run
// active the returned channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.done
}

// Active returns the scan id being polled, or "".
func (p *Poller) Active() string {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.done == nil {
		return ""
	}
	select {
	case <-p.done:
		return ""
	default:
		return p.scanID
	}
}

// Terminal reports the final status recorded for scanID.
func (p *Poller) Terminal(scanID string) (models.ScanStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.terminal[scanID]
	return s, ok
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.scanID = ""
}

func (p *Poller) isTerminal(scanID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.terminal[scanID]
	return ok
}

// markTerminal records the final status and reports whether this call was the first.
func (p *Poller) markTerminal(scanID string, status models.ScanStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.terminal[scanID]; seen {
		return false
	}
	p.terminal[scanID] = status
	return true
}

func (p *Poller) run(ctx context.Context, scanID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		scan, err := p.fetch.GetScan(ctx, scanID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Best effort: the next tick retries.
			p.log("poll scan %s: %v", scanID, err)
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if p.onUpdate != nil {
			p.onUpdate(*scan)
		}

		if !scan.Status.IsTerminal() {
			continue
		}

		if p.markTerminal(scanID, scan.Status) && scan.Status == models.ScanCompleted && p.onCompleted != nil {
			p.onCompleted(ctx, *scan)
		}
		return
	}
}

func (p *Poller) log(format string, args ...interface{}) {
	if p.logf != nil {
		p.logf(format, args...)
	}
}
