package scenario

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/bringten-smoke/internal/artifacts"
	"github.com/kuitang/bringten-smoke/internal/browser"
	"github.com/kuitang/bringten-smoke/internal/errs"
	"github.com/kuitang/bringten-smoke/internal/logutil"
	"github.com/kuitang/bringten-smoke/internal/obs"
	"github.com/kuitang/bringten-smoke/internal/ratelimit"
)

// Status of a step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

const pagePreviewChars = 500

// StepResult records one executed (or skipped) step.
type StepResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Tab      int           `json:"tab,omitempty"`
	Status   Status        `json:"status"`
	Started  time.Time     `json:"started,omitzero"`
	Duration time.Duration `json:"duration_ns"`
	Code     errs.Code     `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID     string            `json:"run_id"`
	Scenario  string            `json:"scenario"`
	Driver    string            `json:"driver"`
	Started   time.Time         `json:"started"`
	Duration  time.Duration     `json:"duration_ns"`
	Passed    bool              `json:"passed"`
	Steps     []StepResult      `json:"steps"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

// Failed returns the failing step, if any.
func (r *Result) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Status == StatusFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// RunnerOptions configures a Runner. Zero values are usable.
type RunnerOptions struct {
	Store artifacts.Store  // Failure evidence; nil discards it
	Pacer *ratelimit.Pacer // Step pacing; nil runs unpaced
	RunID string           // Fixed run ID; empty generates one
	// CloseTabs closes every tab the run opened and drops their pacers once
	// the run ends. Leave it off to keep the tabs around for inspection.
	CloseTabs bool
}

// Runner executes scenarios on one driver.
type Runner struct {
	driver browser.Driver
	store  artifacts.Store
	pacer  *ratelimit.Pacer
	runID     string
	closeTabs bool
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(d browser.Driver, opts RunnerOptions) *Runner {
	r := &Runner{
		driver: d,
		store:  opts.Store,
		pacer:  opts.Pacer,
		runID:     opts.RunID,
		closeTabs: opts.CloseTabs,
		now:       time.Now,
	}
	if r.store == nil {
		r.store = artifacts.Discard{}
	}
	if r.pacer == nil {
		r.pacer = ratelimit.NewPacer(ratelimit.DefaultConfig)
	}
	return r
}

// Run executes sc in order. It returns the result and the error of the first
// failing step; steps after a failure are recorded as skipped.
func (r *Runner) Run(ctx context.Context, sc Scenario) (*Result, error) {
	runID := r.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = obs.WithRun(ctx, runID, sc.Name)
	log := obs.From(ctx).With("pkg", "scenario")

	res := &Result{
		RunID:     runID,
		Scenario:  sc.Name,
		Driver:    r.driver.Name(),
		Started:   r.now(),
		Steps:     make([]StepResult, 0, len(sc.Steps)),
		Artifacts: map[string]string{},
	}
	session := &Session{Driver: r.driver}
	log.Info("run_start", "driver", res.Driver, "steps", len(sc.Steps))

	var runErr error
	for i, st := range sc.Steps {
		sr := StepResult{Index: i + 1, Name: st.Name()}
		if runErr != nil {
			sr.Status = StatusSkipped
			res.Steps = append(res.Steps, sr)
			continue
		}

		if err := r.pacer.Wait(ctx, pacerKey(session.TabNumber())); err != nil {
			runErr = r.fail(ctx, res, session, &sr, errs.Wrap(errs.Canceled, "run interrupted", err))
			res.Steps = append(res.Steps, sr)
			continue
		}

		sr.Started = r.now()
		err := st.Run(obs.WithStep(ctx, sr.Index, sr.Name, session.TabNumber()), session)
		sr.Duration = r.now().Sub(sr.Started)
		sr.Tab = session.TabNumber()
		stepCtx := obs.WithStep(ctx, sr.Index, sr.Name, sr.Tab)

		if err != nil {
			runErr = r.fail(stepCtx, res, session, &sr, err)
			res.Steps = append(res.Steps, sr)
			continue
		}
		sr.Status = StatusPassed
		res.Steps = append(res.Steps, sr)
		obs.From(stepCtx).Debug("step_passed", "pkg", "scenario", "dur_ms", float64(sr.Duration.Microseconds())/1000.0)
	}

	if r.closeTabs {
		r.release(ctx, session)
	}

	res.Duration = r.now().Sub(res.Started)
	res.Passed = runErr == nil
	if res.Passed {
		log.Info("run_passed", "dur_ms", res.Duration.Milliseconds())
	} else {
		log.Error("run_failed", "dur_ms", res.Duration.Milliseconds(), "code", errs.CodeOf(runErr), "error", runErr.Error())
	}
	return res, runErr
}

// fail records the failure on sr, saves evidence from the current tab and
// returns the error annotated with the step.
func (r *Runner) fail(ctx context.Context, res *Result, s *Session, sr *StepResult, err error) error {
	sr.Status = StatusFailed
	sr.Code = errs.CodeOf(err)
	sr.Error = err.Error()

	log := obs.From(ctx).With("pkg", "scenario")
	log.Error("step_failed", "code", sr.Code, "error", sr.Error)

	// Evidence is best effort and must not outlive an interrupted run.
	if tab, tabErr := s.Tab(); tabErr == nil && ctx.Err() == nil {
		if png, shotErr := tab.Screenshot(ctx); shotErr == nil {
			r.save(ctx, res, "failure.png", png, "image/png")
		} else {
			log.Warn("screenshot_failed", "error", shotErr)
		}
		if src, srcErr := tab.Content(ctx); srcErr == nil {
			log.Info("page_preview", "preview", logutil.PagePreview(src, pagePreviewChars))
			r.save(ctx, res, "failure.html", []byte(src), "text/html; charset=utf-8")
		}
	}

	return fmt.Errorf("step %d (%s): %w", sr.Index, sr.Name, err)
}

// release closes the session's tabs, newest first, and forgets their pacers.
func (r *Runner) release(ctx context.Context, s *Session) {
	for n := len(s.tabs); n >= 1; n-- {
		if err := s.tabs[n-1].Close(); err != nil {
			obs.From(ctx).Warn("tab_close_failed", "pkg", "scenario", "tab", n, "error", err)
		}
		r.pacer.Forget(pacerKey(n))
	}
	r.pacer.Forget(pacerKey(0))
	s.tabs = nil
}

func pacerKey(tab int) string {
	return "tab-" + strconv.Itoa(tab)
}

func (r *Runner) save(ctx context.Context, res *Result, name string, content []byte, contentType string) {
	loc, err := r.store.Put(ctx, artifacts.Key(res.RunID, name), content, contentType)
	if err != nil {
		obs.From(ctx).Warn("artifact_save_failed", "pkg", "scenario", "name", name, "error", err)
		return
	}
	if loc != "" {
		res.Artifacts[name] = loc
	}
}
