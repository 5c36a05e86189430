// SPDX-License-Identifier: MPL-2.0

// Command fragmenter installs and updates content-addressed package
// distributions.
package main

import "github.com/flybywiresim/fragmenter/cmd/fragmenter"

func main() {
	cmd.Execute()
}
