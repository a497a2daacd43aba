// Package netutil provides loopback port allocation for server slots whose
// configured base URL requests a kernel-assigned port.
package netutil
