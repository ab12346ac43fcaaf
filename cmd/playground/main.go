// Playground CLI
//
// Runs the pieces of the e2e harness by hand: launch the shared browser the
// way a test run does, copy fixtures, or serve one playground exactly as a
// suite would see it.
//
//	playground launch              # browser + fixtures, until Ctrl-C
//	playground prepare             # copy playground/ to playground-temp/
//	playground serve css --build   # build and serve playground/css
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
