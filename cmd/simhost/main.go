// Command simhost is a single-threaded host application that loads the
// hostbench plugin and runs its steps on the main loop.
package main

import (
	"os"
	"runtime"

	"github.com/roach88/hostbench/internal/simhost"
)

// The host loop, its timers and every step run on the main OS thread.
func init() { runtime.LockOSThread() }

func main() {
	os.Exit(simhost.Main(os.Args[1:], os.Stdout, os.Stderr))
}
