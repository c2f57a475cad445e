package update

import (
	"time"
)

// State is a position in the update lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StatePermissionPending State = "permission-pending"
	StateChecking          State = "checking"
	StateUpdateFound       State = "update-found"
	StateAccepted          State = "accepted"
	StateNotFound          State = "not-found"
	StateError             State = "error"
	StateDownloading       State = "downloading"
	StateExtracting        State = "extracting"
	StateReadyToInstall    State = "ready-to-install"
	StateInstalling        State = "installing"
	StateInstallFinished   State = "install-finished"
)

// String returns the string representation of the State.
func (s State) String() string {
	return string(s)
}

// AppcastItem describes an available update as reported by the update engine.
type AppcastItem struct {
	Version         string            `json:"version" yaml:"version"`
	DisplayVersion  string            `json:"display_version,omitempty" yaml:"display_version,omitempty"`
	Title           string            `json:"title,omitempty" yaml:"title,omitempty"`
	ReleaseNotesURL string            `json:"release_notes_url,omitempty" yaml:"release_notes_url,omitempty"`
	InfoURL         string            `json:"info_url,omitempty" yaml:"info_url,omitempty"`
	DownloadURL     string            `json:"download_url,omitempty" yaml:"download_url,omitempty"`
	ContentLength   uint64            `json:"content_length,omitempty" yaml:"content_length,omitempty"`
	PublishedAt     time.Time         `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	Critical        bool              `json:"critical,omitempty" yaml:"critical,omitempty"`
	Extra           map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Label returns the display version if set, otherwise the version.
func (i AppcastItem) Label() string {
	if i.DisplayVersion != "" {
		return i.DisplayVersion
	}
	return i.Version
}

// ReleaseNotes is a downloaded release notes payload.
// Encoding and MIMEType are empty when the engine could not determine them.
type ReleaseNotes struct {
	Data     []byte
	Encoding string
	MIMEType string
}

// PermissionRequest is the ordered list of description entries shown when
// asking whether to check for updates automatically.
type PermissionRequest []map[string]string

// PermissionResponse answers a PermissionRequest.
type PermissionResponse struct {
	AutomaticUpdateChecks bool `json:"automatic_update_checks" yaml:"automatic_update_checks"`
	SendSystemProfile     bool `json:"send_system_profile" yaml:"send_system_profile"`
}

// Progress reports download and extraction progress of the current cycle.
type Progress struct {
	ExpectedBytes uint64
	ReceivedBytes uint64
	Extraction    float64
}

// Fraction returns the downloaded fraction, or 0 when the expected size is unknown.
func (p Progress) Fraction() float64 {
	if p.ExpectedBytes == 0 {
		return 0
	}
	f := float64(p.ReceivedBytes) / float64(p.ExpectedBytes)
	if f > 1 {
		return 1
	}
	return f
}
