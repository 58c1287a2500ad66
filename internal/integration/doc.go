// Package integration holds end-to-end tests that run the mirror against
// HTTP servers on the loopback interface.
package integration
