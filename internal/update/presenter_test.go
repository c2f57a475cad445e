package update

import (
	"sync"

	"github.com/adamancini/actionstatus/internal/types"
)

type armable interface {
	Armed() bool
}

// recordingPresenter records every call and keeps the continuations it was
// handed. It counts overlaps: a continuation handed out while an earlier one
// is still armed.
type recordingPresenter struct {
	mu       sync.Mutex
	calls    []string
	handed   []armable
	overlaps int

	permission *Reply[PermissionResponse]
	check      *Reply[types.CheckStatus]
	choice     *Reply[types.Choice]
	download   *Reply[types.DownloadStatus]
	install    *Reply[types.Choice]
	ack        *Ack

	lastErr   error
	lastNotes ReleaseNotes
	lastItem  AppcastItem
	lastKind  types.FoundKind
}

func (p *recordingPresenter) record(name string, cont armable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
	if cont == nil {
		return
	}
	for _, h := range p.handed {
		if h.Armed() {
			p.overlaps++
		}
	}
	p.handed = append(p.handed, cont)
}

func (p *recordingPresenter) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *recordingPresenter) count(name string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) ShowCanCheckForUpdates(bool) {
	p.record("can-check", nil)
}

func (p *recordingPresenter) ShowUpdatePermissionRequest(_ PermissionRequest, reply *Reply[PermissionResponse]) {
	p.permission = reply
	p.record("permission", reply)
}

func (p *recordingPresenter) ShowUserInitiatedUpdateCheck(reply *Reply[types.CheckStatus]) {
	p.check = reply
	p.record("check", reply)
}

func (p *recordingPresenter) DismissUserInitiatedUpdateCheck() {
	p.record("dismiss-check", nil)
}

func (p *recordingPresenter) ShowUpdateFound(kind types.FoundKind, item AppcastItem, _ bool, reply *Reply[types.Choice]) {
	p.choice = reply
	p.lastKind = kind
	p.lastItem = item
	p.record("found", reply)
}

func (p *recordingPresenter) ShowUpdateReleaseNotes(notes ReleaseNotes) {
	p.lastNotes = notes
	p.record("notes", nil)
}

func (p *recordingPresenter) ShowUpdateReleaseNotesFailed(err error) {
	p.lastErr = err
	p.record("notes-failed", nil)
}

func (p *recordingPresenter) ShowUpdateNotFound(ack *Ack) {
	p.ack = ack
	p.record("not-found", ack)
}

func (p *recordingPresenter) ShowUpdaterError(err error, ack *Ack) {
	p.ack = ack
	p.lastErr = err
	p.record("error", ack)
}

func (p *recordingPresenter) ShowDownloadInitiated(reply *Reply[types.DownloadStatus]) {
	p.download = reply
	p.record("download", reply)
}

func (p *recordingPresenter) ShowDownloadExpectedLength(uint64) {
	p.record("expected", nil)
}

func (p *recordingPresenter) ShowDownloadReceivedData(uint64) {
	p.record("received", nil)
}

func (p *recordingPresenter) ShowDownloadStartedExtracting() {
	p.record("extracting", nil)
}

func (p *recordingPresenter) ShowExtractionProgress(float64) {
	p.record("extraction-progress", nil)
}

func (p *recordingPresenter) ShowReadyToInstall(reply *Reply[types.Choice]) {
	p.install = reply
	p.record("ready", reply)
}

func (p *recordingPresenter) ShowInstallingUpdate() {
	p.record("installing", nil)
}

func (p *recordingPresenter) ShowSendingTerminationSignal() {
	p.record("terminating", nil)
}

func (p *recordingPresenter) ShowInstallationFinished(ack *Ack) {
	p.ack = ack
	p.record("finished", ack)
}

func (p *recordingPresenter) DismissUpdateInstallation() {
	p.record("dismiss-install", nil)
}
