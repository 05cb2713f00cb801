package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/scanfix/internal/models"
)

// DefaultPROpenDelay separates closing the fix editor from opening PR creation.
const DefaultPROpenDelay = 500 * time.Millisecond

// CredentialService checks and stores the source-control credential.
type CredentialService interface {
	TokenStatus(ctx context.Context) (*models.TokenStatus, error)
	SaveToken(ctx context.Context, token string) (*models.TokenStatus, error)
}

// FixService persists fixes.
type FixService interface {
	SaveFix(ctx context.Context, input models.FixInput) (*models.FixRecord, error)
}

// PullRequestService opens pull requests from saved fixes.
type PullRequestService interface {
	CreatePullRequest(ctx context.Context, input models.PullRequestInput) (*models.PullRequest, error)
}

// Backend bundles the services the coordinator calls.
type Backend interface {
	CredentialService
	FixService
	PullRequestService
}

// CredentialFlag is the session-wide "has a usable credential" flag.
// Reads observe the latest write.
type CredentialFlag struct {
	mu     sync.Mutex
	known  bool
	usable bool
}

// Get returns the flag and whether it has been set this session.
func (f *CredentialFlag) Get() (usable, known bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usable, f.known
}

// Set records the credential state.
func (f *CredentialFlag) Set(usable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known = true
	f.usable = usable
}

// Invalidate forgets the credential state so the next check asks the service.
func (f *CredentialFlag) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known = false
	f.usable = false
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPROpenDelay sets the pause between Saved and CreatingPR.
func WithPROpenDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.prOpenDelay = d
		}
	}
}

// WithCredentialFlag shares a credential flag across coordinators.
func WithCredentialFlag(flag *CredentialFlag) Option {
	return func(c *Coordinator) {
		if flag != nil {
			c.flag = flag
		}
	}
}

// WithOnPullRequest registers a hook run after a pull request is created.
func WithOnPullRequest(fn func(ctx context.Context, vuln models.Vulnerability, pr models.PullRequest)) Option {
	return func(c *Coordinator) { c.onPullRequest = fn }
}

// WithLogf sets the hook receiving workflow errors.
func WithLogf(fn func(format string, args ...interface{})) Option {
	return func(c *Coordinator) { c.logf = fn }
}

// Coordinator drives a Machine against the backend. Every method is safe
// for concurrent use; calls that block on the network hold no lock while waiting.
type Coordinator struct {
	backend       Backend
	repositoryID  string
	baseBranch    string
	prOpenDelay   time.Duration
	flag          *CredentialFlag
	onPullRequest func(ctx context.Context, vuln models.Vulnerability, pr models.PullRequest)
	logf          func(format string, args ...interface{})

	mu      sync.Mutex
	machine Machine
	lastPR  *models.PullRequest
	// gen identifies the current flow; Cancel and RequestFix advance it.
	gen uint64
}

// ErrFlowCancelled is returned when a backend call finishes after its flow
// was cancelled or replaced. The result is not applied.
var ErrFlowCancelled = errors.New("workflow cancelled")

// NewCoordinator creates an idle coordinator for one repository.
func NewCoordinator(backend Backend, repositoryID, baseBranch string, opts ...Option) *Coordinator {
	c := &Coordinator{
		backend:      backend,
		repositoryID: repositoryID,
		baseBranch:   baseBranch,
		prOpenDelay:  DefaultPROpenDelay,
		flag:         &CredentialFlag{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current workflow state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Snapshot()
}

// State returns the current workflow state.
func (c *Coordinator) State() State {
	return c.Snapshot().State
}

// LastError returns the error held by the current state, if any.
func (c *Coordinator) LastError() error {
	return c.Snapshot().Err
}

// History returns the states visited since creation.
func (c *Coordinator) History() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.History()
}

// LastPullRequest returns the most recently created pull request.
func (c *Coordinator) LastPullRequest() *models.PullRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPR
}

// Credential returns the shared credential flag.
func (c *Coordinator) Credential() *CredentialFlag {
	return c.flag
}

func (c *Coordinator) apply(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Apply(ev)
}

// begin applies ev and returns the generation of the flow it belongs to.
func (c *Coordinator) begin(ev Event) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, c.machine.Apply(ev)
}

// applyFor applies ev only while the flow of generation gen is current.
func (c *Coordinator) applyFor(gen uint64, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrFlowCancelled
	}
	return c.machine.Apply(ev)
}

// snapshotFor returns the current state with its flow generation.
func (c *Coordinator) snapshotFor() (Snapshot, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Snapshot(), c.gen
}

// OpenFile shows path.
func (c *Coordinator) OpenFile(path string) error {
	return c.apply(OpenFile{Path: path})
}

// CloseFile closes the file view.
func (c *Coordinator) CloseFile() error {
	return c.apply(CloseFile{})
}

// Cancel abandons the workflow and clears the selection.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	_ = c.machine.Apply(Cancel{})
}

// RequestFix selects vuln and resolves the credential step. It ends in
// Editing when a usable credential exists and in PATRequired otherwise.
func (c *Coordinator) RequestFix(ctx context.Context, vuln models.Vulnerability) (State, error) {
	c.mu.Lock()
	if err := c.machine.Apply(RequestFix{Vulnerability: vuln}); err != nil {
		c.mu.Unlock()
		return c.State(), err
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	usable, known := c.flag.Get()
	if !known {
		status, err := c.backend.TokenStatus(ctx)
		if err != nil {
			// Unknown credential state is treated as missing.
			c.log("check credential: %v", err)
		} else {
			usable = status.Usable()
			c.flag.Set(usable)
		}
	}

	if err := c.applyFor(gen, CredentialChecked{Usable: usable}); err != nil {
		return c.State(), err
	}
	return c.State(), nil
}

// SubmitCredential saves token. On success the workflow moves straight to
// Editing; on failure it stays in PATRequired with the error recorded.
func (c *Coordinator) SubmitCredential(ctx context.Context, token string) error {
	gen, err := c.begin(SubmitCredential{})
	if err != nil {
		return err
	}

	status, err := c.backend.SaveToken(ctx, token)
	if err == nil && !status.Usable() {
		err = fmt.Errorf("credential rejected by the credential service")
	}
	if err != nil {
		c.log("save credential: %v", err)
		if applyErr := c.applyFor(gen, CredentialFailed{Err: err}); applyErr != nil {
			return applyErr
		}
		return err
	}

	c.flag.Set(true)
	return c.applyFor(gen, CredentialSaved{})
}

// SaveFix persists content as the fix for the selected vulnerability.
// On failure the workflow stays in Editing.
func (c *Coordinator) SaveFix(ctx context.Context, content string) (*models.FixRecord, error) {
	snap, gen := c.snapshotFor()
	if snap.State != Editing || snap.Vulnerability == nil {
		return nil, fmt.Errorf("%w: save fix in %s", ErrInvalidTransition, snap.State)
	}

	fix, err := c.backend.SaveFix(ctx, models.FixInput{
		VulnerabilityID: snap.Vulnerability.ID,
		FilePath:        snap.Vulnerability.FilePath,
		Content:         content,
	})
	if err != nil {
		c.log("save fix: %v", err)
		if applyErr := c.applyFor(gen, FixFailed{Err: err}); applyErr != nil {
			return nil, applyErr
		}
		return nil, err
	}

	if err := c.applyFor(gen, FixSaved{Fix: *fix}); err != nil {
		if errors.Is(err, ErrFlowCancelled) {
			c.log("discarding fix %s saved after cancel", fix.ID)
		}
		return nil, err
	}
	return fix, nil
}

// OpenPullRequest waits the configured delay and moves Saved to CreatingPR.
// A cancelled context leaves the workflow in Saved.
func (c *Coordinator) OpenPullRequest(ctx context.Context) error {
	snap, gen := c.snapshotFor()
	if snap.State != Saved {
		return fmt.Errorf("%w: open pull request in %s", ErrInvalidTransition, snap.State)
	}
	if c.prOpenDelay > 0 {
		timer := time.NewTimer(c.prOpenDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return c.applyFor(gen, OpenPullRequest{})
}

// CreatePullRequest opens a pull request carrying the single saved fix.
// On success the workflow passes through Done and resets to Idle; on
// failure it stays in CreatingPR.
func (c *Coordinator) CreatePullRequest(ctx context.Context, title, body string) (*models.PullRequest, error) {
	snap, gen := c.snapshotFor()
	if snap.State != CreatingPR || snap.Fix == nil || snap.Vulnerability == nil {
		return nil, fmt.Errorf("%w: create pull request in %s", ErrInvalidTransition, snap.State)
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle(*snap.Vulnerability)
	}
	if body == "" {
		body = DefaultBody(*snap.Vulnerability)
	}

	pr, err := c.backend.CreatePullRequest(ctx, models.PullRequestInput{
		RepositoryID: c.repositoryID,
		FixIDs:       []string{snap.Fix.ID},
		Title:        title,
		Body:         body,
		BaseBranch:   c.baseBranch,
	})
	if err != nil {
		c.log("create pull request: %v", err)
		if applyErr := c.applyFor(gen, PullRequestFailed{Err: err}); applyErr != nil {
			return nil, applyErr
		}
		return nil, err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log("pull request %s opened after cancel", pr.URL)
		return nil, ErrFlowCancelled
	}
	applyErr := c.machine.Apply(PullRequestCreated{PullRequest: *pr})
	if applyErr == nil {
		c.lastPR = pr
		applyErr = c.machine.Apply(Reset{})
	}
	c.mu.Unlock()
	if applyErr != nil {
		return nil, applyErr
	}

	if c.onPullRequest != nil {
		c.onPullRequest(ctx, *snap.Vulnerability, *pr)
	}
	return pr, nil
}

// DefaultTitle is the pull request title proposed for a vulnerability fix.
func DefaultTitle(v models.Vulnerability) string {
	title := v.Title
	if title == "" {
		title = v.ID
	}
	return "Fix: " + title
}

// DefaultBody describes the fixed vulnerability for the pull request body.
func DefaultBody(v models.Vulnerability) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fixes %s vulnerability %s in `%s`", v.Severity, v.ID, v.FilePath)
	if line, ok := v.Line(); ok {
		fmt.Fprintf(&sb, " (line %d)", line)
	}
	sb.WriteString(".\n")
	if v.Description != "" {
		sb.WriteString("\n" + v.Description + "\n")
	}
	if advice := v.Advice(); advice != "" {
		sb.WriteString("\nRecommendation: " + advice + "\n")
	}
	return sb.String()
}

func (c *Coordinator) log(format string, args ...interface{}) {
	if c.logf != nil {
		c.logf(format, args...)
	}
}
