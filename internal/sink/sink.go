// SPDX-License-Identifier: MPL-2.0

// Package sink replaces the event-emitter callbacks of the original design
// with a single observer interface. Callers register one Sink at
// construction instead of subscribing per event name.
package sink

// Phase identifies a named step of the install state machine (§4.F).
type Phase string

const (
	PhaseUpdateCheck             Phase = "updateCheck"
	PhaseInstallBegin            Phase = "installBegin"
	PhaseBackupStarted           Phase = "backupStarted"
	PhaseBackupFinished          Phase = "backupFinished"
	PhaseInstallModuleDownload   Phase = "installModuleDownload"
	PhaseInstallModuleDecompress Phase = "installModuleDecompress"
	PhaseInstallFinish           Phase = "installFinish"
	PhaseInstallFailRestore      Phase = "installFailRestore"
	PhaseDone                    Phase = "done"
)

// PhaseChange describes a single state machine transition. ModuleIndex is
// -1 for phases that are not module-scoped.
type PhaseChange struct {
	Phase       Phase
	Module      string
	ModuleIndex int
}

// DownloadProgress reports cumulative bytes for one fragment transfer.
// Total is zero when the server did not advertise a content length.
type DownloadProgress struct {
	Module    string
	Loaded    int64
	Total     int64
	PartIndex int // 1-based index of the part in flight, 0 when not split
	NumParts  int
}

// UnzipProgress reports per-entry extraction progress for one module.
type UnzipProgress struct {
	Module     string
	EntryIndex int
	EntryName  string
	EntryCount int
}

// CopyProgress reports file-count progress (not byte count, per the fixed
// design note) while staged files are moved into the destination tree.
type CopyProgress struct {
	Module string
	Moved  int
	Total  int
}

// RetryScheduled is emitted between per-module retry attempts.
type RetryScheduled struct {
	Module      string
	RetryCount  int
	WaitSeconds int
}

// Sink is the single observer every Fragmenter component reports through.
// Implementations must be safe to call repeatedly and in the exact order
// events occur; the engine itself is single-threaded, so a Sink never needs
// to be safe for concurrent calls from more than one goroutine at a time.
type Sink interface {
	OnPhaseChange(PhaseChange)
	OnDownloadStarted(module string)
	OnDownloadProgress(DownloadProgress)
	OnDownloadFinished(module string)
	OnDownloadInterrupted(module string, userAction bool)
	OnUnzipStarted(module string)
	OnUnzipProgress(UnzipProgress)
	OnUnzipFinished(module string)
	OnCopyStarted(module string)
	OnCopyProgress(CopyProgress)
	OnCopyFinished(module string)
	OnRetryScheduled(RetryScheduled)
	OnRetryStarted(module string, retryCount int)
	OnError(err error)
	OnCancelled()
}

// NopSink discards every event. Embed it to implement Sink while overriding
// only the methods a caller cares about.
type NopSink struct{}

func (NopSink) OnPhaseChange(PhaseChange)           {}
func (NopSink) OnDownloadStarted(string)            {}
func (NopSink) OnDownloadProgress(DownloadProgress) {}
func (NopSink) OnDownloadFinished(string)           {}
func (NopSink) OnDownloadInterrupted(string, bool)  {}
func (NopSink) OnUnzipStarted(string)               {}
func (NopSink) OnUnzipProgress(UnzipProgress)       {}
func (NopSink) OnUnzipFinished(string)              {}
func (NopSink) OnCopyStarted(string)                {}
func (NopSink) OnCopyProgress(CopyProgress)         {}
func (NopSink) OnCopyFinished(string)               {}
func (NopSink) OnRetryScheduled(RetryScheduled)     {}
func (NopSink) OnRetryStarted(string, int)          {}
func (NopSink) OnError(error)                       {}
func (NopSink) OnCancelled()                        {}

var _ Sink = NopSink{}
