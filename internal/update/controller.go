// Package update drives the update lifecycle between an update engine and the
// shell that presents it.
//
// The engine calls the Controller's entry points as its own work progresses.
// The Controller validates each event against the lifecycle, forwards it to a
// Presenter and, for stages that need an answer, hands the Presenter a
// one-shot continuation. Resolving that continuation advances the lifecycle
// and then calls the engine's own callback with the shell's answer.
package update

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/types"
)

// Event names used in logs, metrics and protocol violation errors.
const (
	EventCanCheckChanged      = "can-check-changed"
	EventPermissionRequest    = "permission-request"
	EventCheckStarted         = "check-started"
	EventCheckDismissed       = "check-dismissed"
	EventUpdateFound          = "update-found"
	EventReleaseNotesReady    = "release-notes-ready"
	EventReleaseNotesFailed   = "release-notes-failed"
	EventUpdateNotFound       = "update-not-found"
	EventUpdaterError         = "updater-error"
	EventDownloadInitiated    = "download-initiated"
	EventDownloadExpected     = "download-expected-length"
	EventDownloadReceived     = "download-received-data"
	EventExtractionStarted    = "extraction-started"
	EventExtractionProgress   = "extraction-progress"
	EventReadyToInstall       = "ready-to-install"
	EventInstalling           = "installing"
	EventTerminationSignal    = "termination-signal-sent"
	EventInstallationFinished = "installation-finished"
	EventInstallDismissed     = "installation-dismissed"
)

// Controller sequences the update lifecycle.
//
// Entry points are expected to be called serially by a single engine. The
// Presenter is always invoked without the controller's lock held, so it may
// resolve a continuation before returning.
type Controller struct {
	presenter       Presenter
	log             *log.Entry
	metrics         metrics.Recorder
	dismissedChoice types.Choice

	mu          sync.Mutex
	state       State
	pending     continuation
	cycle       uuid.UUID
	dismissed   bool
	suppressing bool
	canCheck    bool
	progress    Progress
}

// NewController creates an idle controller presenting through p.
func NewController(p Presenter) *Controller {
	return &Controller{
		presenter:       p,
		log:             log.WithField("component", "update"),
		metrics:         metrics.Nop(),
		dismissedChoice: types.ChoiceDismiss,
		state:           StateIdle,
	}
}

// WithLogger sets the log entry the controller writes diagnostics to.
func (c *Controller) WithLogger(entry *log.Entry) *Controller {
	c.log = entry
	return c
}

// WithMetrics sets the metrics recorder.
func (c *Controller) WithMetrics(rec metrics.Recorder) *Controller {
	c.metrics = rec
	return c
}

// WithDismissedChoice sets the choice handed to the engine when an update is
// found for a check the user already dismissed.
func (c *Controller) WithDismissedChoice(choice types.Choice) *Controller {
	c.dismissedChoice = choice
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cycle returns the identifier of the current check cycle, or uuid.Nil before the first one.
func (c *Controller) Cycle() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

// Pending returns the kind of the outstanding continuation, if any.
func (c *Controller) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return "", false
	}
	return c.pending.Kind(), true
}

// Progress returns download and extraction progress of the current cycle.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// CanCheckForUpdates returns the last value announced by the engine.
func (c *Controller) CanCheckForUpdates() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canCheck
}

// SetCanCheckForUpdates announces whether a check may be started right now.
func (c *Controller) SetCanCheckForUpdates(canCheck bool) {
	c.mu.Lock()
	c.canCheck = canCheck
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventCanCheckChanged, metrics.OutcomePresented)
	c.presenter.ShowCanCheckForUpdates(canCheck)
}

// RequestPermission asks the shell whether to check for updates automatically.
// reply receives the shell's answer.
func (c *Controller) RequestPermission(req PermissionRequest, reply func(PermissionResponse)) error {
	c.mu.Lock()
	if err := c.admitLocked(EventPermissionRequest, StateIdle); err != nil {
		c.mu.Unlock()
		return err
	}
	c.beginCycleLocked()

	var r *Reply[PermissionResponse]
	r = newReply(KindPermission, true, func(resp PermissionResponse) {
		c.settle(r, StateIdle)
		if reply != nil {
			reply(resp)
		}
	}, c.misuse)
	c.pending = r
	c.setStateLocked(StatePermissionPending)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventPermissionRequest, metrics.OutcomePresented)
	c.presenter.ShowUpdatePermissionRequest(req, r)
	return nil
}

// StartUserInitiatedCheck starts presenting a check the user asked for.
// The shell may resolve the continuation with CheckCanceled to abandon the
// check; reply receives whatever the shell reports.
func (c *Controller) StartUserInitiatedCheck(reply func(types.CheckStatus)) error {
	c.mu.Lock()
	if err := c.admitLocked(EventCheckStarted, StateIdle); err != nil {
		c.mu.Unlock()
		return err
	}
	c.beginCycleLocked()

	var r *Reply[types.CheckStatus]
	r = newReply(KindCheck, false, func(status types.CheckStatus) {
		c.mu.Lock()
		if c.pending == continuation(r) {
			c.pending = nil
			if status == types.CheckCanceled && c.state == StateChecking {
				c.dismissed = true
				c.setStateLocked(StateIdle)
			}
		}
		c.mu.Unlock()
		if reply != nil {
			reply(status)
		}
	}, c.misuse)
	c.pending = r
	c.setStateLocked(StateChecking)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventCheckStarted, metrics.OutcomePresented)
	c.presenter.ShowUserInitiatedUpdateCheck(r)
	return nil
}

// DismissUserInitiatedCheck abandons the check in flight. The eventual
// conclusion of that check is swallowed. Calling it with no check in flight
// does nothing.
func (c *Controller) DismissUserInitiatedCheck() {
	c.mu.Lock()
	if c.state != StateChecking {
		c.entryLocked().Debug("dismiss requested with no check in flight")
		c.mu.Unlock()
		c.metrics.ObserveEvent(EventCheckDismissed, metrics.OutcomeIgnored)
		return
	}
	c.retirePendingLocked()
	c.dismissed = true
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventCheckDismissed, metrics.OutcomePresented)
	c.presenter.DismissUserInitiatedUpdateCheck()
}

// UpdateFound announces an update that still has to be downloaded.
func (c *Controller) UpdateFound(item AppcastItem, userInitiated bool, reply func(types.Choice)) error {
	return c.found(types.FoundStandard, item, userInitiated, reply)
}

// DownloadedUpdateFound announces an update whose package is already downloaded.
func (c *Controller) DownloadedUpdateFound(item AppcastItem, userInitiated bool, reply func(types.Choice)) error {
	return c.found(types.FoundDownloaded, item, userInitiated, reply)
}

// ResumableUpdateFound announces an update whose installation can be resumed.
func (c *Controller) ResumableUpdateFound(item AppcastItem, userInitiated bool, reply func(types.Choice)) error {
	return c.found(types.FoundResumable, item, userInitiated, reply)
}

// InformationalUpdateFound announces an update that can only be looked at.
func (c *Controller) InformationalUpdateFound(item AppcastItem, userInitiated bool, reply func(types.Choice)) error {
	return c.found(types.FoundInformational, item, userInitiated, reply)
}

func (c *Controller) found(kind types.FoundKind, item AppcastItem, userInitiated bool, reply func(types.Choice)) error {
	event := EventUpdateFound + "-" + kind.String()

	c.mu.Lock()
	if c.lateForDismissedLocked() {
		c.suppressLocked(event)
		choice := c.dismissedChoice
		c.mu.Unlock()
		if reply != nil {
			reply(choice)
		}
		return nil
	}

	switch {
	case c.state == StateChecking:
	case c.state == StateIdle && !userInitiated:
		c.beginCycleLocked()
	default:
		err := c.violationLocked(event, "")
		c.mu.Unlock()
		return err
	}
	c.retirePendingLocked()

	var r *Reply[types.Choice]
	r = newReply(KindChoice, true, func(choice types.Choice) {
		next := StateIdle
		if choice == types.ChoiceInstall && kind.Installable() {
			next = StateAccepted
		}
		c.settle(r, next)
		if reply != nil {
			reply(choice)
		}
	}, c.misuse)
	c.pending = r
	c.setStateLocked(StateUpdateFound)
	c.entryLocked().WithFields(log.Fields{
		"version":        item.Version,
		"kind":           kind,
		"user_initiated": userInitiated,
	}).Info("update found")
	c.mu.Unlock()

	c.metrics.ObserveEvent(event, metrics.OutcomePresented)
	c.presenter.ShowUpdateFound(kind, item, userInitiated, r)
	return nil
}

// ReleaseNotesReady forwards downloaded release notes for the update on screen.
func (c *Controller) ReleaseNotesReady(notes ReleaseNotes) error {
	if swallow, err := c.admitNotes(EventReleaseNotesReady); swallow || err != nil {
		return err
	}
	c.metrics.ObserveEvent(EventReleaseNotesReady, metrics.OutcomePresented)
	c.presenter.ShowUpdateReleaseNotes(notes)
	return nil
}

// ReleaseNotesFailed reports that release notes could not be downloaded.
func (c *Controller) ReleaseNotesFailed(err error) error {
	if swallow, aerr := c.admitNotes(EventReleaseNotesFailed); swallow || aerr != nil {
		return aerr
	}
	c.metrics.ObserveEvent(EventReleaseNotesFailed, metrics.OutcomePresented)
	c.presenter.ShowUpdateReleaseNotesFailed(err)
	return nil
}

// admitNotes validates a release notes event. Notes trailing a suppressed
// check conclusion are swallowed.
func (c *Controller) admitNotes(event string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle && c.suppressing {
		c.metrics.ObserveEvent(event, metrics.OutcomeSuppressed)
		return true, nil
	}
	return false, c.admitLocked(event, StateUpdateFound, StateAccepted)
}

// UpdateNotFound reports that the user-initiated check found nothing newer.
func (c *Controller) UpdateNotFound(ack func()) error {
	c.mu.Lock()
	if c.lateForDismissedLocked() {
		c.suppressLocked(EventUpdateNotFound)
		c.mu.Unlock()
		if ack != nil {
			ack()
		}
		return nil
	}
	if err := c.admitLocked(EventUpdateNotFound, StateChecking); err != nil {
		c.mu.Unlock()
		return err
	}
	c.retirePendingLocked()

	a := c.newAckLocked(ack)
	c.setStateLocked(StateNotFound)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventUpdateNotFound, metrics.OutcomePresented)
	c.presenter.ShowUpdateNotFound(a)
	return nil
}

// UpdaterError forwards an engine error. It is valid in every state: any
// outstanding continuation is retired and the cycle ends once the shell
// acknowledges the error.
func (c *Controller) UpdaterError(err error, ack func()) error {
	c.mu.Lock()
	if c.lateForDismissedLocked() {
		c.suppressLocked(EventUpdaterError)
		c.mu.Unlock()
		if ack != nil {
			ack()
		}
		return nil
	}
	if c.state == StateIdle {
		c.beginCycleLocked()
	}
	c.retirePendingLocked()

	a := c.newAckLocked(ack)
	c.setStateLocked(StateError)
	c.entryLocked().WithError(err).Warn("updater error")
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventUpdaterError, metrics.OutcomePresented)
	c.presenter.ShowUpdaterError(err, a)
	return nil
}

// DownloadInitiated reports that the accepted update started downloading.
// The shell may resolve the continuation with DownloadCanceled to abandon it.
func (c *Controller) DownloadInitiated(reply func(types.DownloadStatus)) error {
	c.mu.Lock()
	if err := c.admitLocked(EventDownloadInitiated, StateAccepted); err != nil {
		c.mu.Unlock()
		return err
	}

	var r *Reply[types.DownloadStatus]
	r = newReply(KindDownload, false, func(status types.DownloadStatus) {
		c.mu.Lock()
		if c.pending == continuation(r) {
			c.pending = nil
			if status == types.DownloadCanceled && c.state == StateDownloading {
				c.setStateLocked(StateIdle)
			}
		}
		c.mu.Unlock()
		if reply != nil {
			reply(status)
		}
	}, c.misuse)
	c.pending = r
	c.progress = Progress{}
	c.setStateLocked(StateDownloading)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventDownloadInitiated, metrics.OutcomePresented)
	c.presenter.ShowDownloadInitiated(r)
	return nil
}

// DownloadExpectedLength reports the size of the download in bytes.
func (c *Controller) DownloadExpectedLength(expected uint64) error {
	c.mu.Lock()
	if err := c.admitLocked(EventDownloadExpected, StateDownloading); err != nil {
		c.mu.Unlock()
		return err
	}
	c.progress.ExpectedBytes = expected
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventDownloadExpected, metrics.OutcomePresented)
	c.presenter.ShowDownloadExpectedLength(expected)
	return nil
}

// DownloadReceivedData reports length more bytes received.
func (c *Controller) DownloadReceivedData(length uint64) error {
	c.mu.Lock()
	if err := c.admitLocked(EventDownloadReceived, StateDownloading); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.progress.ReceivedBytes > math.MaxUint64-length {
		c.progress.ReceivedBytes = math.MaxUint64
	} else {
		c.progress.ReceivedBytes += length
	}
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventDownloadReceived, metrics.OutcomePresented)
	c.presenter.ShowDownloadReceivedData(length)
	return nil
}

// ExtractionStarted reports that the downloaded package is being extracted.
func (c *Controller) ExtractionStarted() error {
	c.mu.Lock()
	if err := c.admitLocked(EventExtractionStarted, StateDownloading, StateAccepted); err != nil {
		c.mu.Unlock()
		return err
	}
	c.retirePendingLocked()
	c.setStateLocked(StateExtracting)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventExtractionStarted, metrics.OutcomePresented)
	c.presenter.ShowDownloadStartedExtracting()
	return nil
}

// ExtractionProgress reports extraction progress as a fraction in [0, 1].
func (c *Controller) ExtractionProgress(progress float64) error {
	c.mu.Lock()
	if err := c.admitLocked(EventExtractionProgress, StateExtracting); err != nil {
		c.mu.Unlock()
		return err
	}
	if math.IsNaN(progress) || progress < 0 || progress > 1 {
		err := c.violationLocked(EventExtractionProgress, fmt.Sprintf("progress %v outside [0, 1]", progress))
		c.mu.Unlock()
		return err
	}
	c.progress.Extraction = progress
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventExtractionProgress, metrics.OutcomePresented)
	c.presenter.ShowExtractionProgress(progress)
	return nil
}

// ReadyToInstall asks the shell whether to install and relaunch now.
func (c *Controller) ReadyToInstall(reply func(types.Choice)) error {
	c.mu.Lock()
	if err := c.admitLocked(EventReadyToInstall, StateExtracting, StateAccepted); err != nil {
		c.mu.Unlock()
		return err
	}
	c.retirePendingLocked()

	var r *Reply[types.Choice]
	r = newReply(KindInstall, true, func(choice types.Choice) {
		next := StateIdle
		if choice == types.ChoiceInstall {
			next = StateInstalling
		}
		c.settle(r, next)
		if reply != nil {
			reply(choice)
		}
	}, c.misuse)
	c.pending = r
	c.setStateLocked(StateReadyToInstall)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventReadyToInstall, metrics.OutcomePresented)
	c.presenter.ShowReadyToInstall(r)
	return nil
}

// Installing reports that the update is being installed.
func (c *Controller) Installing() error {
	c.mu.Lock()
	if err := c.admitLocked(EventInstalling, StateInstalling, StateAccepted); err != nil {
		c.mu.Unlock()
		return err
	}
	c.setStateLocked(StateInstalling)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventInstalling, metrics.OutcomePresented)
	c.presenter.ShowInstallingUpdate()
	return nil
}

// TerminationSignalSent reports that the application was asked to quit for the relaunch.
func (c *Controller) TerminationSignalSent() error {
	c.mu.Lock()
	if err := c.admitLocked(EventTerminationSignal, StateInstalling); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventTerminationSignal, metrics.OutcomePresented)
	c.presenter.ShowSendingTerminationSignal()
	return nil
}

// InstallationFinished reports a completed installation.
func (c *Controller) InstallationFinished(ack func()) error {
	c.mu.Lock()
	if err := c.admitLocked(EventInstallationFinished, StateInstalling); err != nil {
		c.mu.Unlock()
		return err
	}

	a := c.newAckLocked(ack)
	c.setStateLocked(StateInstallFinished)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventInstallationFinished, metrics.OutcomePresented)
	c.presenter.ShowInstallationFinished(a)
	return nil
}

// InstallationDismissed ends the cycle from any state, retiring any
// outstanding continuation.
func (c *Controller) InstallationDismissed() {
	c.mu.Lock()
	c.retirePendingLocked()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.metrics.ObserveEvent(EventInstallDismissed, metrics.OutcomePresented)
	c.presenter.DismissUpdateInstallation()
}

// newAckLocked arms an acknowledgement that returns the controller to idle.
func (c *Controller) newAckLocked(ack func()) *Ack {
	var a *Ack
	a = newAck(func() {
		c.settle(a, StateIdle)
		if ack != nil {
			ack()
		}
	}, c.misuse)
	c.pending = a
	return a
}

// settle moves to next if cont is still the outstanding continuation.
func (c *Controller) settle(cont continuation, next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != cont {
		return
	}
	c.pending = nil
	c.setStateLocked(next)
}

func (c *Controller) admitLocked(event string, allowed ...State) error {
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return c.violationLocked(event, "")
}

func (c *Controller) violationLocked(event, reason string) error {
	err := &ProtocolViolationError{Event: event, State: c.state, Reason: reason}
	c.entryLocked().WithField("event", event).Warn(err.Error())
	c.metrics.ObserveEvent(event, metrics.OutcomeViolation)
	return err
}

// lateForDismissedLocked reports whether a check conclusion belongs to a
// check the user dismissed.
func (c *Controller) lateForDismissedLocked() bool {
	return c.state == StateIdle && c.dismissed
}

func (c *Controller) suppressLocked(event string) {
	c.dismissed = false
	c.suppressing = true
	c.entryLocked().WithField("event", event).Debug("suppressed conclusion of dismissed check")
	c.metrics.ObserveEvent(event, metrics.OutcomeSuppressed)
}

func (c *Controller) beginCycleLocked() {
	c.cycle = uuid.New()
	c.dismissed = false
	c.suppressing = false
	c.progress = Progress{}
}

func (c *Controller) retirePendingLocked() {
	if c.pending == nil {
		return
	}
	if c.pending.retire() {
		c.entryLocked().Debugf("retired outstanding %s continuation", c.pending.Kind())
	}
	c.pending = nil
}

func (c *Controller) setStateLocked(to State) {
	if c.state == to {
		return
	}
	c.entryLocked().Debugf("update state %s -> %s", c.state, to)
	c.metrics.ObserveTransition(c.state.String(), to.String())
	c.state = to
}

func (c *Controller) entryLocked() *log.Entry {
	entry := c.log.WithField("state", c.state.String())
	if c.cycle != uuid.Nil {
		entry = entry.WithField("cycle", c.cycle.String())
	}
	return entry
}

func (c *Controller) misuse(kind string, err error) {
	entry := c.log.WithField("kind", kind)
	if errors.Is(err, ErrContinuationRetired) {
		entry.Debugf("late answer ignored: %v", err)
		return
	}
	entry.Errorf("continuation misuse: %v", err)
	c.metrics.IncContinuationReuse(kind)
}
