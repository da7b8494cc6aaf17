// Package server assembles the control panel: it loads the service
// directory, builds the upstream clients and domain components, and serves
// them behind the gin middleware stack.
package server
