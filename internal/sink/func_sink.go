// SPDX-License-Identifier: MPL-2.0

package sink

// FuncSink adapts a set of optional closures to the Sink interface, for
// callers (tests, a GUI) that only want a handful of events. Nil fields are
// treated as no-ops.
type FuncSink struct {
	PhaseChange         func(PhaseChange)
	DownloadStarted     func(module string)
	DownloadProgress    func(DownloadProgress)
	DownloadFinished    func(module string)
	DownloadInterrupted func(module string, userAction bool)
	UnzipStarted        func(module string)
	UnzipProgress       func(UnzipProgress)
	UnzipFinished       func(module string)
	CopyStarted         func(module string)
	CopyProgress        func(CopyProgress)
	CopyFinished        func(module string)
	RetryScheduled      func(RetryScheduled)
	RetryStarted        func(module string, retryCount int)
	Error               func(err error)
	Cancelled           func()
}

func (f FuncSink) OnPhaseChange(pc PhaseChange) {
	if f.PhaseChange != nil {
		f.PhaseChange(pc)
	}
}

func (f FuncSink) OnDownloadStarted(module string) {
	if f.DownloadStarted != nil {
		f.DownloadStarted(module)
	}
}

func (f FuncSink) OnDownloadProgress(p DownloadProgress) {
	if f.DownloadProgress != nil {
		f.DownloadProgress(p)
	}
}

func (f FuncSink) OnDownloadFinished(module string) {
	if f.DownloadFinished != nil {
		f.DownloadFinished(module)
	}
}

func (f FuncSink) OnDownloadInterrupted(module string, userAction bool) {
	if f.DownloadInterrupted != nil {
		f.DownloadInterrupted(module, userAction)
	}
}

func (f FuncSink) OnUnzipStarted(module string) {
	if f.UnzipStarted != nil {
		f.UnzipStarted(module)
	}
}

func (f FuncSink) OnUnzipProgress(p UnzipProgress) {
	if f.UnzipProgress != nil {
		f.UnzipProgress(p)
	}
}

func (f FuncSink) OnUnzipFinished(module string) {
	if f.UnzipFinished != nil {
		f.UnzipFinished(module)
	}
}

func (f FuncSink) OnCopyStarted(module string) {
	if f.CopyStarted != nil {
		f.CopyStarted(module)
	}
}

func (f FuncSink) OnCopyProgress(p CopyProgress) {
	if f.CopyProgress != nil {
		f.CopyProgress(p)
	}
}

func (f FuncSink) OnCopyFinished(module string) {
	if f.CopyFinished != nil {
		f.CopyFinished(module)
	}
}

func (f FuncSink) OnRetryScheduled(r RetryScheduled) {
	if f.RetryScheduled != nil {
		f.RetryScheduled(r)
	}
}

func (f FuncSink) OnRetryStarted(module string, retryCount int) {
	if f.RetryStarted != nil {
		f.RetryStarted(module, retryCount)
	}
}

func (f FuncSink) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f FuncSink) OnCancelled() {
	if f.Cancelled != nil {
		f.Cancelled()
	}
}

var _ Sink = FuncSink{}
