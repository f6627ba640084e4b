// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	cmd "github.com/provar-ci/provar-ci/cmd/provarci"
)

func main() {
	os.Exit(cmd.Execute())
}
