package update

import (
	"github.com/adamancini/actionstatus/internal/types"
)

// Presenter is the shell side of the update lifecycle. The controller calls
// one method per stage it presents. Methods that receive a Reply or Ack must
// eventually resolve it exactly once, possibly after user interaction and
// possibly from another goroutine; they must not block waiting for the user.
type Presenter interface {
	ShowCanCheckForUpdates(canCheck bool)
	ShowUpdatePermissionRequest(req PermissionRequest, reply *Reply[PermissionResponse])
	ShowUserInitiatedUpdateCheck(reply *Reply[types.CheckStatus])
	DismissUserInitiatedUpdateCheck()
	ShowUpdateFound(kind types.FoundKind, item AppcastItem, userInitiated bool, reply *Reply[types.Choice])
	ShowUpdateReleaseNotes(notes ReleaseNotes)
	ShowUpdateReleaseNotesFailed(err error)
	ShowUpdateNotFound(ack *Ack)
	ShowUpdaterError(err error, ack *Ack)
	ShowDownloadInitiated(reply *Reply[types.DownloadStatus])
	ShowDownloadExpectedLength(expected uint64)
	ShowDownloadReceivedData(length uint64)
	ShowDownloadStartedExtracting()
	ShowExtractionProgress(progress float64)
	ShowReadyToInstall(reply *Reply[types.Choice])
	ShowInstallingUpdate()
	ShowSendingTerminationSignal()
	ShowInstallationFinished(ack *Ack)
	DismissUpdateInstallation()
}
