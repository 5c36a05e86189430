// SPDX-License-Identifier: MPL-2.0

package sink

import "github.com/charmbracelet/log"

// LogSink adapts a charmbracelet/log Logger to Sink, emitting one
// field-keyed log line per event. The CLI wrapper's terminal sink embeds
// it and overrides the progress, finished, retry-scheduled and error
// methods.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink wraps logger, falling back to log.Default() when nil.
func NewLogSink(logger *log.Logger) LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return LogSink{Logger: logger}
}

func (s LogSink) OnPhaseChange(pc PhaseChange) {
	if pc.ModuleIndex >= 0 {
		s.Logger.Info("phase change", "phase", pc.Phase, "module", pc.Module, "index", pc.ModuleIndex)
		return
	}
	s.Logger.Info("phase change", "phase", pc.Phase)
}

func (s LogSink) OnDownloadStarted(module string) {
	s.Logger.Debug("download started", "module", module)
}

func (s LogSink) OnDownloadProgress(p DownloadProgress) {
	s.Logger.Debug("download progress", "module", p.Module, "loaded", p.Loaded, "total", p.Total, "part", p.PartIndex, "numParts", p.NumParts)
}

func (s LogSink) OnDownloadFinished(module string) {
	s.Logger.Debug("download finished", "module", module)
}

func (s LogSink) OnDownloadInterrupted(module string, userAction bool) {
	s.Logger.Warn("download interrupted", "module", module, "userAction", userAction)
}

func (s LogSink) OnUnzipStarted(module string) {
	s.Logger.Debug("unzip started", "module", module)
}

func (s LogSink) OnUnzipProgress(p UnzipProgress) {
	s.Logger.Debug("unzip progress", "module", p.Module, "entry", p.EntryName, "index", p.EntryIndex, "count", p.EntryCount)
}

func (s LogSink) OnUnzipFinished(module string) {
	s.Logger.Debug("unzip finished", "module", module)
}

func (s LogSink) OnCopyStarted(module string) {
	s.Logger.Debug("copy started", "module", module)
}

func (s LogSink) OnCopyProgress(p CopyProgress) {
	s.Logger.Debug("copy progress", "module", p.Module, "moved", p.Moved, "total", p.Total)
}

func (s LogSink) OnCopyFinished(module string) {
	s.Logger.Debug("copy finished", "module", module)
}

func (s LogSink) OnRetryScheduled(r RetryScheduled) {
	s.Logger.Warn("retry scheduled", "module", r.Module, "attempt", r.RetryCount, "waitSeconds", r.WaitSeconds)
}

func (s LogSink) OnRetryStarted(module string, retryCount int) {
	s.Logger.Info("retry started", "module", module, "attempt", retryCount)
}

func (s LogSink) OnError(err error) {
	s.Logger.Error("error", "err", err)
}

func (s LogSink) OnCancelled() {
	s.Logger.Warn("cancelled")
}

var _ Sink = LogSink{}
