// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// confirm prints prompt to out and reads a yes/no answer from in, defaulting
// to "no" on EOF or an unrecognized answer. This is a plain stdin prompt
// rather than a full-screen TUI, since an install confirmation is a single
// yes/no question, not an interactive form.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
