package feed

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/types"
	"github.com/adamancini/actionstatus/internal/update"
)

// ErrNoReleaseNotes is reported to the presenter when a release has no body.
var ErrNoReleaseNotes = errors.New("release has no notes")

// Checker looks up the latest release.
type Checker interface {
	CheckForUpdate(ctx context.Context) (*Result, error)
}

// Report summarises one check cycle as the user saw it.
type Report struct {
	Result   *Result
	Choice   types.Choice
	Err      error
	Canceled bool
}

// InstallRequested reports whether the user chose to install the update.
func (r *Report) InstallRequested() bool {
	return r.Result != nil && r.Result.Available && r.Choice == types.ChoiceInstall
}

// Session is the update engine of the CLI: it runs checks against a Checker
// and reports every stage to a Controller. Package download is left to the
// user, so an accepted update ends the cycle with the release page.
type Session struct {
	checker Checker
	ctrl    *update.Controller
	log     *log.Entry
}

// NewSession creates a session reporting to ctrl.
func NewSession(checker Checker, ctrl *update.Controller) *Session {
	return &Session{
		checker: checker,
		ctrl:    ctrl,
		log:     log.WithField("component", "feed"),
	}
}

// Controller returns the controller the session reports to.
func (s *Session) Controller() *update.Controller {
	return s.ctrl
}

// RequestPermission asks whether to check for updates automatically and
// waits for the answer.
func (s *Session) RequestPermission(ctx context.Context, req update.PermissionRequest) (update.PermissionResponse, error) {
	answer := make(chan update.PermissionResponse, 1)
	if err := s.ctrl.RequestPermission(req, func(resp update.PermissionResponse) { answer <- resp }); err != nil {
		return update.PermissionResponse{}, err
	}

	select {
	case resp := <-answer:
		return resp, nil
	case <-ctx.Done():
		s.ctrl.InstallationDismissed()
		return update.PermissionResponse{}, ctx.Err()
	}
}

// CheckNow runs a user-initiated check and waits until the user has dealt
// with its outcome.
func (s *Session) CheckNow(ctx context.Context) (*Report, error) {
	checkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := newCycle()

	err := s.ctrl.StartUserInitiatedCheck(func(status types.CheckStatus) {
		if status == types.CheckCanceled {
			c.update(func(r *Report) { r.Canceled = true })
			cancel()
		}
	})
	if err != nil {
		return nil, err
	}
	s.ctrl.SetCanCheckForUpdates(false)
	defer s.ctrl.SetCanCheckForUpdates(true)

	result, err := s.checker.CheckForUpdate(checkCtx)
	switch {
	case err != nil:
		c.update(func(r *Report) { r.Err = err })
		if perr := s.ctrl.UpdaterError(err, c.finish); perr != nil {
			return nil, perr
		}
	case !result.Available:
		c.update(func(r *Report) { r.Result = result })
		if perr := s.ctrl.UpdateNotFound(c.finish); perr != nil {
			return nil, perr
		}
	default:
		if perr := s.present(result, true, c); perr != nil {
			return nil, perr
		}
	}

	return s.wait(ctx, c)
}

// CheckInBackground runs a check the user did not ask for. Only an available
// update is presented; errors are logged. It does nothing while another
// cycle is in progress.
func (s *Session) CheckInBackground(ctx context.Context) (*Report, error) {
	if state := s.ctrl.State(); state != update.StateIdle {
		s.log.WithField("state", state).Debug("skipping background check")
		return nil, nil
	}

	result, err := s.checker.CheckForUpdate(ctx)
	if err != nil {
		s.log.Warnf("background update check failed: %v", err)
		return &Report{Err: err}, nil
	}
	if !result.Available {
		s.log.WithField("version", result.Current).Debug("no update available")
		return &Report{Result: result}, nil
	}

	c := newCycle()
	if err := s.present(result, false, c); err != nil {
		return nil, err
	}
	return s.wait(ctx, c)
}

// present announces an available update and forwards its release notes.
func (s *Session) present(result *Result, userInitiated bool, c *cycle) error {
	c.update(func(r *Report) { r.Result = result })

	announce := s.ctrl.UpdateFound
	if result.Kind == types.FoundInformational {
		announce = s.ctrl.InformationalUpdateFound
	}
	err := announce(result.Item, userInitiated, func(choice types.Choice) {
		c.update(func(r *Report) { r.Choice = choice })
		c.finish()
	})
	if err != nil {
		return err
	}

	// The presenter may already have answered.
	if state := s.ctrl.State(); state != update.StateUpdateFound {
		return nil
	}
	if err := s.forwardNotes(result); err != nil {
		// An answer that lands after the state check leaves the notes undeliverable.
		s.log.WithError(err).Debug("release notes not delivered")
	}
	return nil
}

func (s *Session) forwardNotes(result *Result) error {
	if result.Notes == "" {
		return s.ctrl.ReleaseNotesFailed(ErrNoReleaseNotes)
	}
	return s.ctrl.ReleaseNotesReady(update.ReleaseNotes{
		Data:     []byte(result.Notes),
		Encoding: "utf-8",
		MIMEType: "text/markdown",
	})
}

func (s *Session) wait(ctx context.Context, c *cycle) (*Report, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		s.ctrl.InstallationDismissed()
		return c.report(), ctx.Err()
	}

	report := c.report()
	if report.InstallRequested() {
		// Nothing is downloaded here; the caller points the user at the release.
		s.log.WithField("version", report.Result.Item.Version).Info("update accepted")
		s.ctrl.InstallationDismissed()
	}
	return report, nil
}

// cycle collects a Report from continuation callbacks, which may run on any
// goroutine.
type cycle struct {
	mu   sync.Mutex
	r    Report
	done chan struct{}
	once sync.Once
}

func newCycle() *cycle {
	return &cycle{done: make(chan struct{})}
}

func (c *cycle) update(fn func(r *Report)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.r)
}

func (c *cycle) finish() {
	c.once.Do(func() { close(c.done) })
}

func (c *cycle) report() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.r
	return &r
}
