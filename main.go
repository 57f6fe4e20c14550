// SPDX-License-Identifier: MIT
package main

import "github.com/skaphos/repomon/cmd/repomon"

var execute = repomon.Execute

func main() {
	execute()
}
