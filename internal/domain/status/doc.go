// Package status builds the aggregated, point-in-time status tree of every
// stack and service in the directory. Nothing is cached; each call probes
// the container engine afresh.
package status
