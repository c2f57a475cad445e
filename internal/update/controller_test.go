package update

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/types"
)

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	outcomes map[string]int
	reuses   int
}

func (r *countingRecorder) ObserveEvent(_, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) IncContinuationReuse(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reuses++
}

func newTestController() (*Controller, *recordingPresenter, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	p := &recordingPresenter{}
	c := NewController(p).WithLogger(logger.WithField("component", "update"))
	return c, p, hook
}

var testItem = AppcastItem{Version: "1.2.0", Title: "ActionStatus 1.2.0"}

func TestNewControllerIsIdle(t *testing.T) {
	c, _, _ := newTestController()

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, uuid.Nil, c.Cycle())
	_, ok := c.Pending()
	assert.False(t, ok)
}

func TestUserInitiatedCheckNotFound(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	assert.Equal(t, StateChecking, c.State())
	assert.NotEqual(t, uuid.Nil, c.Cycle())

	acked := 0
	require.NoError(t, c.UpdateNotFound(func() { acked++ }))
	assert.Equal(t, 1, p.count("not-found"))
	require.NotNil(t, p.ack)
	assert.Equal(t, StateNotFound, c.State())

	kind, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, KindAck, kind)

	require.NoError(t, p.ack.Acknowledge())
	assert.Equal(t, 1, acked)
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	assert.Equal(t, StateChecking, c.State())
	assert.Equal(t, 0, p.overlaps)
}

func TestDismissedCheckSuppressesLateConclusion(t *testing.T) {
	tests := []struct {
		name    string
		deliver func(c *Controller, engine *engineLog) error
	}{
		{
			name: "update found",
			deliver: func(c *Controller, e *engineLog) error {
				return c.UpdateFound(testItem, true, e.choice)
			},
		},
		{
			name: "downloaded update found",
			deliver: func(c *Controller, e *engineLog) error {
				return c.DownloadedUpdateFound(testItem, true, e.choice)
			},
		},
		{
			name: "not found",
			deliver: func(c *Controller, e *engineLog) error {
				return c.UpdateNotFound(e.ack)
			},
		},
		{
			name: "updater error",
			deliver: func(c *Controller, e *engineLog) error {
				return c.UpdaterError(errors.New("appcast unreachable"), e.ack)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p, _ := newTestController()
			rec := &countingRecorder{}
			c.WithMetrics(rec)
			engine := &engineLog{}

			require.NoError(t, c.StartUserInitiatedCheck(nil))
			c.DismissUserInitiatedCheck()
			assert.Equal(t, StateIdle, c.State())
			assert.False(t, p.check.Armed(), "dismiss retires the check continuation")

			before := len(p.Calls())
			require.NoError(t, tt.deliver(c, engine))
			require.NoError(t, c.ReleaseNotesReady(ReleaseNotes{Data: []byte("notes")}))

			assert.Len(t, p.Calls(), before, "no presentation after dismissal")
			assert.Equal(t, StateIdle, c.State())
			assert.Equal(t, 2, rec.outcomes[metrics.OutcomeSuppressed])
			assert.Equal(t, 1, engine.acks+len(engine.choices), "engine continuation is resolved by the controller")
			for _, ch := range engine.choices {
				assert.Equal(t, types.ChoiceDismiss, ch)
			}
		})
	}
}

func TestDismissedCheckLateFoundUsesConfiguredChoice(t *testing.T) {
	c, _, _ := newTestController()
	c.WithDismissedChoice(types.ChoiceSkip)
	engine := &engineLog{}

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	c.DismissUserInitiatedCheck()
	require.NoError(t, c.UpdateFound(testItem, true, engine.choice))

	assert.Equal(t, []types.Choice{types.ChoiceSkip}, engine.choices)
}

func TestDismissIsIdempotent(t *testing.T) {
	c, p, _ := newTestController()

	c.DismissUserInitiatedCheck()
	assert.Equal(t, 0, p.count("dismiss-check"))

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	c.DismissUserInitiatedCheck()
	c.DismissUserInitiatedCheck()
	c.DismissUserInitiatedCheck()

	assert.Equal(t, 1, p.count("dismiss-check"))
	assert.Equal(t, StateIdle, c.State())
}

func TestNewCheckClearsDismissal(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	c.DismissUserInitiatedCheck()
	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, c.UpdateNotFound(nil))

	assert.Equal(t, 1, p.count("not-found"))
}

func TestCheckCanceledThroughContinuation(t *testing.T) {
	c, p, _ := newTestController()
	var statuses []types.CheckStatus

	require.NoError(t, c.StartUserInitiatedCheck(func(s types.CheckStatus) { statuses = append(statuses, s) }))
	require.NoError(t, p.check.Resolve(types.CheckCanceled))

	assert.Equal(t, []types.CheckStatus{types.CheckCanceled}, statuses)
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.UpdateNotFound(nil))
	assert.Equal(t, 0, p.count("not-found"))
}

func TestCheckDoneKeepsCheckRunning(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, p.check.Resolve(types.CheckDone))
	assert.Equal(t, StateChecking, c.State())

	require.NoError(t, c.UpdateFound(testItem, true, nil))
	assert.Equal(t, StateUpdateFound, c.State())
}

func TestContinuationReuseIsRejected(t *testing.T) {
	c, p, hook := newTestController()
	rec := &countingRecorder{}
	c.WithMetrics(rec)

	acked := 0
	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, c.UpdateNotFound(func() { acked++ }))
	ack := p.ack

	require.NoError(t, ack.Acknowledge())
	require.NoError(t, c.StartUserInitiatedCheck(nil))

	err := ack.Acknowledge()
	assert.ErrorIs(t, err, ErrContinuationReused)
	assert.Equal(t, 1, acked, "engine callback runs once")
	assert.Equal(t, StateChecking, c.State(), "reuse does not advance the lifecycle")
	assert.Equal(t, 1, rec.reuses)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
}

func TestReplyReuseIsRejected(t *testing.T) {
	c, p, _ := newTestController()
	var choices []types.Choice

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, c.UpdateFound(testItem, true, func(ch types.Choice) { choices = append(choices, ch) }))

	require.NoError(t, p.choice.Resolve(types.ChoiceInstall))
	assert.ErrorIs(t, p.choice.Resolve(types.ChoiceSkip), ErrContinuationReused)

	assert.Equal(t, []types.Choice{types.ChoiceInstall}, choices)
	assert.Equal(t, StateAccepted, c.State())
}

func TestRetiredContinuation(t *testing.T) {
	c, p, hook := newTestController()
	rec := &countingRecorder{}
	c.WithMetrics(rec)
	called := false

	require.NoError(t, c.StartUserInitiatedCheck(func(types.CheckStatus) { called = true }))
	check := p.check
	require.NoError(t, c.UpdateFound(testItem, true, nil))

	assert.ErrorIs(t, check.Resolve(types.CheckCanceled), ErrContinuationRetired)
	assert.False(t, called)
	assert.Equal(t, StateUpdateFound, c.State())
	assert.Equal(t, 0, p.overlaps)

	// A late answer to a retired continuation is not misuse.
	assert.Equal(t, 0, rec.reuses)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.DebugLevel, hook.LastEntry().Level)
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, log.ErrorLevel, entry.Level, entry.Message)
	}
}

func TestProtocolViolations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Controller, p *recordingPresenter)
		event func(c *Controller) error
		state State
	}{
		{
			name:  "download progress while idle",
			event: func(c *Controller) error { return c.DownloadReceivedData(512) },
			state: StateIdle,
		},
		{
			name:  "user-initiated found without a check",
			event: func(c *Controller) error { return c.UpdateFound(testItem, true, nil) },
			state: StateIdle,
		},
		{
			name:  "not found while idle",
			event: func(c *Controller) error { return c.UpdateNotFound(nil) },
			state: StateIdle,
		},
		{
			name:  "release notes while checking",
			setup: func(c *Controller, _ *recordingPresenter) { _ = c.StartUserInitiatedCheck(nil) },
			event: func(c *Controller) error { return c.ReleaseNotesReady(ReleaseNotes{}) },
			state: StateChecking,
		},
		{
			name: "found while not-found ack is outstanding",
			setup: func(c *Controller, _ *recordingPresenter) {
				_ = c.StartUserInitiatedCheck(nil)
				_ = c.UpdateNotFound(nil)
			},
			event: func(c *Controller) error { return c.UpdateFound(testItem, false, nil) },
			state: StateNotFound,
		},
		{
			name: "second check while permission is pending",
			setup: func(c *Controller, _ *recordingPresenter) {
				_ = c.RequestPermission(nil, nil)
			},
			event: func(c *Controller) error { return c.StartUserInitiatedCheck(nil) },
			state: StatePermissionPending,
		},
		{
			name: "extraction before install choice",
			setup: func(c *Controller, _ *recordingPresenter) {
				_ = c.StartUserInitiatedCheck(nil)
				_ = c.UpdateFound(testItem, true, nil)
			},
			event: func(c *Controller) error { return c.ExtractionStarted() },
			state: StateUpdateFound,
		},
		{
			name: "termination signal before installing",
			setup: func(c *Controller, p *recordingPresenter) {
				_ = c.StartUserInitiatedCheck(nil)
				_ = c.UpdateFound(testItem, true, nil)
				_ = p.choice.Resolve(types.ChoiceInstall)
			},
			event: func(c *Controller) error { return c.TerminationSignalSent() },
			state: StateAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p, hook := newTestController()
			if tt.setup != nil {
				tt.setup(c, p)
			}
			before := len(p.Calls())

			err := tt.event(c)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocolViolation)
			var pv *ProtocolViolationError
			require.ErrorAs(t, err, &pv)
			assert.Equal(t, tt.state, pv.State)
			assert.Equal(t, tt.state, c.State(), "state is left unchanged")
			assert.Len(t, p.Calls(), before, "violations are not presented")
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
		})
	}
}

func TestExtractionProgressOutOfRange(t *testing.T) {
	c, p, _ := newTestController()
	driveToExtracting(t, c, p)

	for _, v := range []float64{-0.1, 1.5, math.NaN()} {
		err := c.ExtractionProgress(v)
		assert.ErrorIs(t, err, ErrProtocolViolation)
	}
	require.NoError(t, c.ExtractionProgress(0))
	require.NoError(t, c.ExtractionProgress(1))
	assert.Equal(t, 1.0, c.Progress().Extraction)
	assert.Equal(t, 2, p.count("extraction-progress"))
}

func TestFullInstallLifecycle(t *testing.T) {
	c, p, _ := newTestController()
	engine := &engineLog{}

	c.SetCanCheckForUpdates(true)
	assert.True(t, c.CanCheckForUpdates())

	req := PermissionRequest{{"title": "Check for updates automatically?"}}
	require.NoError(t, c.RequestPermission(req, engine.permission))
	require.NoError(t, p.permission.Resolve(PermissionResponse{AutomaticUpdateChecks: true}))
	assert.Equal(t, StateIdle, c.State())
	require.Len(t, engine.permissions, 1)
	assert.True(t, engine.permissions[0].AutomaticUpdateChecks)

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, c.UpdateFound(testItem, true, engine.choice))
	assert.Equal(t, "1.2.0", p.lastItem.Version)
	assert.Equal(t, types.FoundStandard, p.lastKind)
	require.NoError(t, c.ReleaseNotesReady(ReleaseNotes{Data: []byte("# 1.2.0"), Encoding: "utf-8", MIMEType: "text/markdown"}))
	assert.Equal(t, "text/markdown", p.lastNotes.MIMEType)
	require.NoError(t, p.choice.Resolve(types.ChoiceInstall))
	assert.Equal(t, StateAccepted, c.State())

	require.NoError(t, c.DownloadInitiated(nil))
	require.NoError(t, c.DownloadExpectedLength(300))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.DownloadReceivedData(100))
	}
	assert.Equal(t, Progress{ExpectedBytes: 300, ReceivedBytes: 300}, c.Progress())
	assert.Equal(t, 1.0, c.Progress().Fraction())

	require.NoError(t, c.ExtractionStarted())
	assert.False(t, p.download.Armed(), "extraction retires the download continuation")
	require.NoError(t, c.ExtractionProgress(0.5))

	require.NoError(t, c.ReadyToInstall(engine.choice))
	require.NoError(t, p.install.Resolve(types.ChoiceInstall))
	assert.Equal(t, StateInstalling, c.State())

	require.NoError(t, c.Installing())
	require.NoError(t, c.TerminationSignalSent())
	require.NoError(t, c.InstallationFinished(engine.ack))
	assert.Equal(t, StateInstallFinished, c.State())
	require.NoError(t, p.ack.Acknowledge())
	assert.Equal(t, StateIdle, c.State())

	assert.Equal(t, []types.Choice{types.ChoiceInstall, types.ChoiceInstall}, engine.choices)
	assert.Equal(t, 1, engine.acks)
	assert.Equal(t, 0, p.overlaps)
	assert.Equal(t, []string{
		"can-check", "permission", "check", "found", "notes", "download", "expected",
		"received", "received", "received", "extracting", "extraction-progress",
		"ready", "installing", "terminating", "finished",
	}, p.Calls())
}

func TestDownloadedUpdateGoesStraightToInstall(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.DownloadedUpdateFound(testItem, false, nil))
	assert.Equal(t, types.FoundDownloaded, p.lastKind)
	require.NoError(t, p.choice.Resolve(types.ChoiceInstall))
	require.NoError(t, c.Installing())
	assert.Equal(t, StateInstalling, c.State())
}

func TestNonInstallChoicesReturnToIdle(t *testing.T) {
	tests := []struct {
		name   string
		found  func(c *Controller) error
		choice types.Choice
	}{
		{"skip", func(c *Controller) error { return c.UpdateFound(testItem, false, nil) }, types.ChoiceSkip},
		{"dismiss", func(c *Controller) error { return c.ResumableUpdateFound(testItem, false, nil) }, types.ChoiceDismiss},
		{"unknown code", func(c *Controller) error { return c.UpdateFound(testItem, false, nil) }, types.Choice(42)},
		{"install informational", func(c *Controller) error { return c.InformationalUpdateFound(testItem, false, nil) }, types.ChoiceInstall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p, _ := newTestController()
			require.NoError(t, tt.found(c))
			require.NoError(t, p.choice.Resolve(tt.choice))
			assert.Equal(t, StateIdle, c.State())
		})
	}
}

func TestReadyToInstallLater(t *testing.T) {
	c, p, _ := newTestController()
	driveToExtracting(t, c, p)

	require.NoError(t, c.ReadyToInstall(nil))
	require.NoError(t, p.install.Resolve(types.ChoiceDismiss))
	assert.Equal(t, StateIdle, c.State())
}

func TestDownloadCanceled(t *testing.T) {
	c, p, _ := newTestController()
	var statuses []types.DownloadStatus

	require.NoError(t, c.UpdateFound(testItem, false, nil))
	require.NoError(t, p.choice.Resolve(types.ChoiceInstall))
	require.NoError(t, c.DownloadInitiated(func(s types.DownloadStatus) { statuses = append(statuses, s) }))
	require.NoError(t, c.DownloadReceivedData(10))
	require.NoError(t, p.download.Resolve(types.DownloadCanceled))

	assert.Equal(t, []types.DownloadStatus{types.DownloadCanceled}, statuses)
	assert.Equal(t, StateIdle, c.State())
	assert.ErrorIs(t, c.DownloadReceivedData(10), ErrProtocolViolation)
}

func TestUpdaterErrorPreemptsAnyState(t *testing.T) {
	c, p, _ := newTestController()
	driveToDownloading(t, c, p)
	download := p.download

	acked := false
	require.NoError(t, c.UpdaterError(errors.New("disk full"), func() { acked = true }))

	assert.False(t, download.Armed())
	assert.Equal(t, StateError, c.State())
	assert.EqualError(t, p.lastErr, "disk full")
	assert.ErrorIs(t, download.Resolve(types.DownloadCanceled), ErrContinuationRetired)

	require.NoError(t, p.ack.Acknowledge())
	assert.True(t, acked)
	assert.Equal(t, StateIdle, c.State())
	require.NoError(t, c.StartUserInitiatedCheck(nil))
	assert.Equal(t, 0, p.overlaps)
}

func TestUpdaterErrorFromIdleStartsCycle(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.UpdaterError(errors.New("updater failed to start"), nil))
	assert.NotEqual(t, uuid.Nil, c.Cycle())
	assert.Equal(t, 1, p.count("error"))
}

func TestInstallationDismissedRetiresAndReturnsToIdle(t *testing.T) {
	c, p, _ := newTestController()

	require.NoError(t, c.UpdateFound(testItem, false, nil))
	choice := p.choice
	c.InstallationDismissed()

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, choice.Armed())
	assert.Equal(t, 1, p.count("dismiss-install"))

	c.InstallationDismissed()
	assert.Equal(t, StateIdle, c.State())
}

func TestPresenterMayResolveSynchronously(t *testing.T) {
	p := &autoPresenter{}
	c := NewController(p)

	require.NoError(t, c.StartUserInitiatedCheck(nil))
	require.NoError(t, c.UpdateNotFound(nil))

	assert.Equal(t, StateIdle, c.State())
}

func TestContinuationResolvedFromAnotherGoroutine(t *testing.T) {
	c, p, _ := newTestController()
	driveToDownloading(t, c, p)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = p.download.Resolve(types.DownloadDone)
	}()
	for i := 0; i < 50; i++ {
		require.NoError(t, c.DownloadReceivedData(1))
	}
	wg.Wait()

	assert.Equal(t, uint64(50), c.Progress().ReceivedBytes)
	assert.Equal(t, StateDownloading, c.State())
}

func TestRandomEventSequencesNeverOverlapContinuations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	events := []func(c *Controller) error{
		func(c *Controller) error { return c.RequestPermission(nil, nil) },
		func(c *Controller) error { return c.StartUserInitiatedCheck(nil) },
		func(c *Controller) error { c.DismissUserInitiatedCheck(); return nil },
		func(c *Controller) error { return c.UpdateFound(testItem, true, nil) },
		func(c *Controller) error { return c.UpdateFound(testItem, false, nil) },
		func(c *Controller) error { return c.InformationalUpdateFound(testItem, true, nil) },
		func(c *Controller) error { return c.ReleaseNotesReady(ReleaseNotes{}) },
		func(c *Controller) error { return c.UpdateNotFound(nil) },
		func(c *Controller) error { return c.UpdaterError(errors.New("boom"), nil) },
		func(c *Controller) error { return c.DownloadInitiated(nil) },
		func(c *Controller) error { return c.DownloadReceivedData(1) },
		func(c *Controller) error { return c.ExtractionStarted() },
		func(c *Controller) error { return c.ExtractionProgress(rng.Float64()) },
		func(c *Controller) error { return c.ReadyToInstall(nil) },
		func(c *Controller) error { return c.Installing() },
		func(c *Controller) error { return c.TerminationSignalSent() },
		func(c *Controller) error { return c.InstallationFinished(nil) },
		func(c *Controller) error { c.InstallationDismissed(); return nil },
	}

	for run := 0; run < 200; run++ {
		c, p, _ := newTestController()
		for step := 0; step < 40; step++ {
			err := events[rng.Intn(len(events))](c)
			if err != nil {
				require.ErrorIs(t, err, ErrProtocolViolation)
			}
			if rng.Intn(2) == 0 {
				resolveAny(p, rng)
			}
		}
		require.Equal(t, 0, p.overlaps, "run %d presented a continuation while another was armed", run)
	}
}

// resolveAny resolves whichever handed continuation is still armed.
func resolveAny(p *recordingPresenter, rng *rand.Rand) {
	choice := types.Choice(rng.Intn(3))
	if p.permission != nil && p.permission.Armed() {
		_ = p.permission.Resolve(PermissionResponse{})
	}
	if p.check != nil && p.check.Armed() {
		_ = p.check.Resolve(types.CheckStatus(rng.Intn(2)))
	}
	if p.choice != nil && p.choice.Armed() {
		_ = p.choice.Resolve(choice)
	}
	if p.download != nil && p.download.Armed() {
		_ = p.download.Resolve(types.DownloadStatus(rng.Intn(2)))
	}
	if p.install != nil && p.install.Armed() {
		_ = p.install.Resolve(choice)
	}
	if p.ack != nil && p.ack.Armed() {
		_ = p.ack.Acknowledge()
	}
}

func driveToDownloading(t *testing.T, c *Controller, p *recordingPresenter) {
	t.Helper()
	require.NoError(t, c.UpdateFound(testItem, false, nil))
	require.NoError(t, p.choice.Resolve(types.ChoiceInstall))
	require.NoError(t, c.DownloadInitiated(nil))
}

func driveToExtracting(t *testing.T, c *Controller, p *recordingPresenter) {
	t.Helper()
	driveToDownloading(t, c, p)
	require.NoError(t, c.ExtractionStarted())
}

// engineLog records what the engine's own callbacks receive.
type engineLog struct {
	permissions []PermissionResponse
	choices     []types.Choice
	acks        int
}

func (e *engineLog) permission(r PermissionResponse) { e.permissions = append(e.permissions, r) }

func (e *engineLog) choice(c types.Choice) { e.choices = append(e.choices, c) }

func (e *engineLog) ack() { e.acks++ }

// autoPresenter acknowledges not-found presentations before returning.
type autoPresenter struct {
	recordingPresenter
}

func (a *autoPresenter) ShowUpdateNotFound(ack *Ack) {
	a.recordingPresenter.ShowUpdateNotFound(ack)
	_ = ack.Acknowledge()
}
