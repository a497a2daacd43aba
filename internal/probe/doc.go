// Package probe performs HTTP health checks against a server under test.
//
// A server counts as healthy when every configured health path answers an
// HTTP GET with a 2xx or 3xx status. Redirects are not followed; a redirect
// from a health path is itself taken as proof of life.
package probe
