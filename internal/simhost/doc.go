// Package simhost implements a small single-threaded host application.
//
// The host owns a main loop that calls every registered timer once per
// tick, an action registry, a console, extension state and a minimal
// project/track/item/take model. It exists so hostbench has a real process
// to launch, drive and kill; a production host provides the same
// capabilities through internal/hostapi.
//
// All Host methods must be called from the goroutine running Loop. The
// binary in cmd/simhost pins that goroutine to the main OS thread.
package simhost
