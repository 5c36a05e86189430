// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/flybywiresim/fragmenter/internal/ferr"
)

// classifyExitCode maps a Fragmenter error to a process exit code: 1 for
// user-correctable conditions (bad options, missing files, permissions),
// 2 for everything else.
func classifyExitCode(err error) int {
	switch ferr.CodeOf(err) {
	case ferr.InvalidOptions, ferr.InvalidParameters, ferr.InvalidDistributionManifest,
		ferr.FileNotFound, ferr.PermissionsError, ferr.UserAborted:
		return 1
	default:
		return 2
	}
}

// formatError produces a user-friendly rendering of a Fragmenter error,
// adding remediation guidance for the taxonomy codes that have an obvious
// fix.
func formatError(err error) string {
	switch ferr.CodeOf(err) {
	case ferr.NoSpaceOnDevice:
		return fmt.Sprintf("%s\n\nFree up disk space at the destination and retry.", err.Error())
	case ferr.PermissionsError:
		return fmt.Sprintf("%s\n\nCheck that you have write access to the destination directory.", err.Error())
	case ferr.MaxModuleRetries:
		return fmt.Sprintf("%s\n\nThe distribution server may be unreachable or serving corrupted fragments. Retry later, or pass --disable-fallback-to-full=false to allow a full re-download.", err.Error())
	case ferr.ModuleCrcMismatch, ferr.ModuleJsonInvalid, ferr.CorruptedZipFile:
		return fmt.Sprintf("%s\n\nThe downloaded fragment did not verify. Retry the install; if this persists, report it to the distribution's maintainers.", err.Error())
	default:
		return err.Error()
	}
}
