// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/flybywiresim/fragmenter/internal/sink"

	"github.com/charmbracelet/log"
)

// terminalSink renders an install run to a terminal: phase transitions and
// retry starts go through a charmbracelet/log logger (LogSink's
// field-keyed style), retry-scheduled and error lines are printed
// directly, and download/unzip/copy progress overwrites a single line
// with a carriage return rather than scrolling the log.
type terminalSink struct {
	sink.LogSink
	out io.Writer
}

func newTerminalSink(out io.Writer, logger *log.Logger) *terminalSink {
	return &terminalSink{LogSink: sink.NewLogSink(logger), out: out}
}

func (s *terminalSink) OnDownloadProgress(p sink.DownloadProgress) {
	if p.Total <= 0 {
		fmt.Fprintf(s.out, "\r%s  downloading %s: %s", CmdStyle.Render("▸"), p.Module, byteCount(p.Loaded))
		return
	}
	pct := float64(p.Loaded) / float64(p.Total) * 100
	fmt.Fprintf(s.out, "\r%s  downloading %s: %5.1f%% (%s/%s)", CmdStyle.Render("▸"), p.Module, pct, byteCount(p.Loaded), byteCount(p.Total))
}

func (s *terminalSink) OnDownloadFinished(module string) {
	fmt.Fprintf(s.out, "\r%s  downloaded %s%s\n", SuccessStyle.Render("✓"), module, clearLineSuffix)
}

func (s *terminalSink) OnUnzipProgress(p sink.UnzipProgress) {
	fmt.Fprintf(s.out, "\r%s  extracting %s: %d/%d", CmdStyle.Render("▸"), p.Module, p.EntryIndex, p.EntryCount)
}

func (s *terminalSink) OnUnzipFinished(module string) {
	fmt.Fprintf(s.out, "\r%s  extracted %s%s\n", SuccessStyle.Render("✓"), module, clearLineSuffix)
}

func (s *terminalSink) OnCopyProgress(p sink.CopyProgress) {
	fmt.Fprintf(s.out, "\r%s  installing %s: %d/%d files", CmdStyle.Render("▸"), p.Module, p.Moved, p.Total)
}

func (s *terminalSink) OnCopyFinished(module string) {
	fmt.Fprintf(s.out, "\r%s  installed %s%s\n", SuccessStyle.Render("✓"), module, clearLineSuffix)
}

func (s *terminalSink) OnRetryScheduled(r sink.RetryScheduled) {
	fmt.Fprintf(s.out, "\n%s  retrying %s in %ds (attempt %d)\n", WarningStyle.Render("!"), r.Module, r.WaitSeconds, r.RetryCount)
}

func (s *terminalSink) OnError(err error) {
	fmt.Fprintf(s.out, "\n%s  %s\n", ErrorStyle.Render("✗"), err.Error())
}

// clearLineSuffix pads the end of a line that follows an in-place progress
// update, so leftover characters from a longer previous line don't linger.
const clearLineSuffix = "                    "

func byteCount(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

var _ sink.Sink = (*terminalSink)(nil)
