// Package oscroute routes Open Sound Control packets to the methods
// that declare matching addresses.
//
// The dispatch core is in package 'dispatch', built on 'pattern' and
// 'method'.  Transports, configuration, and capture are in 'sio', and
// command-line tools are in `cmd`.
package oscroute
