// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities: OS
// name constants for runtime.GOOS comparisons and Windows reserved
// filename checks for module destination directories.
package platform
