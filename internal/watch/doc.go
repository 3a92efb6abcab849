// Package watch runs the periodic slot check and fans the result out to
// subscribers.
//
// A cycle is skipped outright when nobody is subscribed, so an idle bot never
// opens a browser session. Cycles never overlap: a trigger that fires while
// one is running is dropped and recorded as skipped. Browser access is
// serialized with on-demand checks through a one-slot gate, so at most one
// remote session exists at a time.
package watch
