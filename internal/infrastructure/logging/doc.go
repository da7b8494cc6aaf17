// Package logging builds the control plane's zap logger.
//
// Production output is sampled JSON on stdout; development output is a
// coloured console. LOG_FILE adds a JSON copy rotated by lumberjack. The
// level can be changed while running with SetLevel.
package logging
