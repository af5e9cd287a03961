// SPDX-License-Identifier: MPL-2.0

package main

import (
	cmd "atelier-cli/cmd/atelier"
)

func main() {
	cmd.Execute()
}
