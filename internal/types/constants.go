// Package types provides type-safe constants shared by the status bridge and the update lifecycle.
//
// This package centralizes the enumerated types used throughout the codebase,
// replacing magic strings and numbers with typed constants that provide
// validation methods.
//
// SYNC REQUIREMENT: ItemStatus values must stay in sync with the status file
// format read by internal/state (the `status` field of each item).
package types

import (
	"fmt"
	"strings"
)

// ItemStatus is the tri-state status of a monitored item.
type ItemStatus string

const (
	// StatusUnknown indicates the item has not reported a result yet.
	StatusUnknown ItemStatus = "unknown"
	// StatusFailed indicates the item's last run failed.
	StatusFailed ItemStatus = "failed"
	// StatusSucceeded indicates the item's last run succeeded.
	StatusSucceeded ItemStatus = "succeeded"
)

// AllItemStatuses returns all valid item statuses.
func AllItemStatuses() []ItemStatus {
	return []ItemStatus{StatusUnknown, StatusFailed, StatusSucceeded}
}

// Validate checks if the ItemStatus is a valid value.
func (s ItemStatus) Validate() error {
	switch s {
	case StatusUnknown, StatusFailed, StatusSucceeded:
		return nil
	case "":
		return fmt.Errorf("status is required")
	default:
		return fmt.Errorf("invalid status '%s' (must be unknown, failed, or succeeded)", s)
	}
}

// String returns the string representation of the ItemStatus.
func (s ItemStatus) String() string {
	return string(s)
}

// IsFailing returns true if the status counts against the aggregate passing flag.
// Unknown is treated as non-failing.
func (s ItemStatus) IsFailing() bool {
	return s == StatusFailed
}

// ParseItemStatus parses a string into an ItemStatus.
// Accepts the aliases "passing"/"pass"/"success" and "failing"/"fail"/"failure".
// An empty string parses as StatusUnknown.
func ParseItemStatus(s string) (ItemStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unknown":
		return StatusUnknown, nil
	case "succeeded", "success", "passing", "pass":
		return StatusSucceeded, nil
	case "failed", "failure", "failing", "fail":
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("invalid status '%s' (must be unknown, failed, or succeeded)", s)
	}
}

// FoundKind identifies which variant of an update-found event was announced.
type FoundKind string

const (
	// FoundStandard is an update that still has to be downloaded.
	FoundStandard FoundKind = "standard"
	// FoundDownloaded is an update whose package is already on disk.
	FoundDownloaded FoundKind = "downloaded"
	// FoundResumable is an update whose installation was interrupted and can be resumed.
	FoundResumable FoundKind = "resumable"
	// FoundInformational is an update that only links to more information.
	FoundInformational FoundKind = "informational"
)

// AllFoundKinds returns all valid found kinds.
func AllFoundKinds() []FoundKind {
	return []FoundKind{FoundStandard, FoundDownloaded, FoundResumable, FoundInformational}
}

// String returns the string representation of the FoundKind.
func (k FoundKind) String() string {
	return string(k)
}

// Installable returns true if choosing to install moves the update forward.
func (k FoundKind) Installable() bool {
	return k != FoundInformational
}

// Choice is the numeric answer a shell gives to an update-found or
// ready-to-install prompt. The values mirror the common updater convention;
// shells may pass other values through, which are treated as "not install".
type Choice int

const (
	// ChoiceSkip skips this version.
	ChoiceSkip Choice = iota
	// ChoiceInstall installs the update (now, for ready-to-install).
	ChoiceInstall
	// ChoiceDismiss closes the prompt and reminds later.
	ChoiceDismiss
)

// String returns the string representation of the Choice.
func (c Choice) String() string {
	switch c {
	case ChoiceSkip:
		return "skip"
	case ChoiceInstall:
		return "install"
	case ChoiceDismiss:
		return "dismiss"
	default:
		return fmt.Sprintf("choice(%d)", int(c))
	}
}

// ParseChoice parses a string into a Choice.
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "s":
		return ChoiceSkip, nil
	case "install", "i", "yes", "y":
		return ChoiceInstall, nil
	case "dismiss", "later", "d", "l", "no", "n":
		return ChoiceDismiss, nil
	default:
		return 0, fmt.Errorf("invalid choice '%s' (must be skip, install, or later)", s)
	}
}

// CheckStatus is the value a shell reports through a user-initiated check continuation.
type CheckStatus uint

const (
	// CheckDone reports the check UI is up; the check keeps running.
	CheckDone CheckStatus = iota
	// CheckCanceled reports the user cancelled the check.
	CheckCanceled
)

// String returns the string representation of the CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case CheckDone:
		return "done"
	case CheckCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("check-status(%d)", uint(s))
	}
}

// DownloadStatus is the value a shell reports through a download continuation.
type DownloadStatus uint

const (
	// DownloadDone reports the download UI is up; the download keeps running.
	DownloadDone DownloadStatus = iota
	// DownloadCanceled reports the user cancelled the download.
	DownloadCanceled
)

// String returns the string representation of the DownloadStatus.
func (s DownloadStatus) String() string {
	switch s {
	case DownloadDone:
		return "done"
	case DownloadCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("download-status(%d)", uint(s))
	}
}
