package interactive

import (
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/types"
	"github.com/adamancini/actionstatus/internal/update"
)

// DefaultNotesWait is how long an update prompt waits for release notes.
const DefaultNotesWait = 3 * time.Second

// maxNoteLines caps the release notes printed under an update prompt.
const maxNoteLines = 20

// Options configure a Presenter.
type Options struct {
	// Interactive is false when input is not a terminal. Every decision then
	// takes its non-committal default without reading input.
	Interactive bool
	// Permission is the answer used for permission requests when not interactive,
	// and the source of the system profile setting when interactive.
	Permission update.PermissionResponse
	// NotesWait bounds how long an update prompt waits for release notes.
	NotesWait time.Duration
}

// Presenter shows the update lifecycle on a terminal. Questions are asked on
// their own goroutine so the controller is never blocked on user input.
type Presenter struct {
	prompter *Prompter
	opts     Options
	log      *log.Entry

	mu       sync.Mutex
	cancel   func() bool
	notes    chan struct{}
	expected uint64
	received uint64

	wg sync.WaitGroup
}

var _ update.Presenter = (*Presenter)(nil)

// NewPresenter creates a presenter that asks its questions through prompter.
func NewPresenter(prompter *Prompter, opts Options) *Presenter {
	if opts.NotesWait <= 0 {
		opts.NotesWait = DefaultNotesWait
	}
	return &Presenter{
		prompter: prompter,
		opts:     opts,
		log:      log.WithField("component", "presenter"),
	}
}

// Wait blocks until every outstanding question has been answered.
func (p *Presenter) Wait() {
	p.wg.Wait()
}

// Cancel abandons the check or download on screen, if any, and reports
// whether there was one.
func (p *Presenter) Cancel() bool {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return false
	}
	return cancel()
}

func (p *Presenter) setCancel(fn func() bool) {
	p.mu.Lock()
	p.cancel = fn
	p.mu.Unlock()
}

func (p *Presenter) ask(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

// ShowCanCheckForUpdates only logs; the CLI has no menu item to disable.
func (p *Presenter) ShowCanCheckForUpdates(canCheck bool) {
	p.log.WithField("can_check", canCheck).Debug("check availability changed")
}

// ShowUpdatePermissionRequest asks whether to check for updates automatically.
func (p *Presenter) ShowUpdatePermissionRequest(req update.PermissionRequest, reply *update.Reply[update.PermissionResponse]) {
	for _, entry := range req {
		keys := make([]string, 0, len(entry))
		for k := range entry {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p.prompter.printf("  %s: %s\n", k, entry[k])
		}
	}

	if !p.opts.Interactive {
		p.resolve(reply.Resolve(p.opts.Permission))
		return
	}
	p.ask(func() {
		resp := update.PermissionResponse{SendSystemProfile: p.opts.Permission.SendSystemProfile}
		resp.AutomaticUpdateChecks = p.prompter.confirm("Check for updates automatically?")
		p.resolve(reply.Resolve(resp))
	})
}

// ShowUserInitiatedUpdateCheck announces the check and keeps reply for Cancel.
func (p *Presenter) ShowUserInitiatedUpdateCheck(reply *update.Reply[types.CheckStatus]) {
	p.prompter.println("Checking for updates...")
	p.setCancel(func() bool {
		return reply.Resolve(types.CheckCanceled) == nil
	})
}

// DismissUserInitiatedUpdateCheck forgets the check on screen.
func (p *Presenter) DismissUserInitiatedUpdateCheck() {
	p.setCancel(nil)
	p.prompter.println("Update check canceled.")
}

// ShowUpdateFound announces item and asks what to do once its notes arrive.
func (p *Presenter) ShowUpdateFound(kind types.FoundKind, item update.AppcastItem, userInitiated bool, reply *update.Reply[types.Choice]) {
	p.setCancel(nil)
	notes := make(chan struct{})
	p.mu.Lock()
	p.notes = notes
	p.mu.Unlock()

	p.prompter.printf("\nA new version is available: %s\n", titleOf(item))
	if item.InfoURL != "" {
		p.prompter.printf("  %s\n", item.InfoURL)
	}

	p.ask(func() {
		p.awaitNotes(notes)
		if !p.opts.Interactive {
			p.resolve(reply.Resolve(types.ChoiceDismiss))
			return
		}

		question := "Install it now?"
		switch kind {
		case types.FoundDownloaded:
			question = "The update is downloaded. Install it now?"
		case types.FoundResumable:
			question = "Resume installing it now?"
		case types.FoundInformational:
			question = "Open the release page?"
		}
		p.resolve(reply.Resolve(choiceFor(p.prompter.prompt("%s", question))))
	})
}

// ShowUpdateReleaseNotes prints the notes of the update on screen.
func (p *Presenter) ShowUpdateReleaseNotes(notes update.ReleaseNotes) {
	if strings.HasPrefix(notes.MIMEType, "text/") || notes.MIMEType == "" {
		lines := strings.Split(strings.TrimSpace(string(notes.Data)), "\n")
		p.prompter.println("\nRelease notes:")
		for i, line := range lines {
			if i == maxNoteLines {
				p.prompter.printf("  ... %d more lines\n", len(lines)-maxNoteLines)
				break
			}
			p.prompter.printf("  %s\n", line)
		}
	} else {
		p.prompter.printf("\nRelease notes: %d bytes of %s\n", len(notes.Data), notes.MIMEType)
	}
	p.notesDone()
}

// ShowUpdateReleaseNotesFailed reports why there are no notes.
func (p *Presenter) ShowUpdateReleaseNotesFailed(err error) {
	p.prompter.printf("\nRelease notes unavailable: %v\n", err)
	p.notesDone()
}

// ShowUpdateNotFound reports that the installed version is current.
func (p *Presenter) ShowUpdateNotFound(ack *update.Ack) {
	p.setCancel(nil)
	p.prompter.println("You're up to date.")
	p.resolve(ack.Acknowledge())
}

// ShowUpdaterError prints err and acknowledges it.
func (p *Presenter) ShowUpdaterError(err error, ack *update.Ack) {
	p.setCancel(nil)
	p.notesDone()
	p.prompter.printf("Update error: %v\n", err)
	p.resolve(ack.Acknowledge())
}

// ShowDownloadInitiated announces the download and keeps reply for Cancel.
func (p *Presenter) ShowDownloadInitiated(reply *update.Reply[types.DownloadStatus]) {
	p.mu.Lock()
	p.expected, p.received = 0, 0
	p.mu.Unlock()
	p.prompter.println("Downloading update...")
	p.setCancel(func() bool {
		return reply.Resolve(types.DownloadCanceled) == nil
	})
}

// ShowDownloadExpectedLength records the size of the download.
func (p *Presenter) ShowDownloadExpectedLength(expected uint64) {
	p.mu.Lock()
	p.expected, p.received = expected, 0
	p.mu.Unlock()
}

// ShowDownloadReceivedData prints download progress.
func (p *Presenter) ShowDownloadReceivedData(length uint64) {
	p.mu.Lock()
	p.received += length
	progress := update.Progress{ExpectedBytes: p.expected, ReceivedBytes: p.received}
	p.mu.Unlock()

	if progress.ExpectedBytes == 0 {
		p.prompter.printf("  %d bytes\n", progress.ReceivedBytes)
		return
	}
	p.prompter.printf("  %d/%d bytes (%.0f%%)\n", progress.ReceivedBytes, progress.ExpectedBytes, progress.Fraction()*100)
}

// ShowDownloadStartedExtracting ends the download stage.
func (p *Presenter) ShowDownloadStartedExtracting() {
	p.setCancel(nil)
	p.prompter.println("Extracting update...")
}

// ShowExtractionProgress prints how much has been extracted.
func (p *Presenter) ShowExtractionProgress(progress float64) {
	p.prompter.printf("  extracted %.0f%%\n", progress*100)
}

// ShowReadyToInstall asks whether to install and relaunch.
func (p *Presenter) ShowReadyToInstall(reply *update.Reply[types.Choice]) {
	p.prompter.println("The update is ready to install.")
	p.ask(func() {
		if !p.opts.Interactive {
			p.resolve(reply.Resolve(types.ChoiceDismiss))
			return
		}
		p.resolve(reply.Resolve(choiceFor(p.prompter.prompt("Install and relaunch now?"))))
	})
}

// ShowInstallingUpdate announces the installation.
func (p *Presenter) ShowInstallingUpdate() {
	p.prompter.println("Installing update...")
}

// ShowSendingTerminationSignal tells the user the application is about to quit.
func (p *Presenter) ShowSendingTerminationSignal() {
	p.prompter.println("Waiting for the application to quit...")
}

// ShowInstallationFinished reports the installed update.
func (p *Presenter) ShowInstallationFinished(ack *update.Ack) {
	p.prompter.println("Update installed.")
	p.resolve(ack.Acknowledge())
}

// DismissUpdateInstallation drops whatever is on screen for this cycle.
func (p *Presenter) DismissUpdateInstallation() {
	p.setCancel(nil)
	p.notesDone()
	p.log.Debug("update installation dismissed")
}

// awaitNotes waits for the release notes of the update on screen, or until
// NotesWait has passed.
func (p *Presenter) awaitNotes(notes <-chan struct{}) {
	timer := time.NewTimer(p.opts.NotesWait)
	defer timer.Stop()
	select {
	case <-notes:
	case <-timer.C:
		p.log.Debug("release notes did not arrive in time")
	}
}

func (p *Presenter) notesDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notes != nil {
		close(p.notes)
		p.notes = nil
	}
}

// resolve logs continuation misuse. The controller has already recorded it.
func (p *Presenter) resolve(err error) {
	if err != nil {
		p.log.WithError(err).Debug("continuation not used")
	}
}

func choiceFor(resp Response) types.Choice {
	switch resp {
	case ResponseYes, ResponseAll:
		return types.ChoiceInstall
	case ResponseNo:
		return types.ChoiceSkip
	default:
		return types.ChoiceDismiss
	}
}

func titleOf(item update.AppcastItem) string {
	if item.Title != "" && item.Title != item.Label() {
		return item.Title + " (" + item.Label() + ")"
	}
	return item.Label()
}
