// Package logging builds slog loggers for mediaspool.
//
// Two formats are supported: a console handler that renders
// "TIME LEVEL component: message key=value" lines, and a JSON handler for
// machine consumption. Output fans out to stdout plus a log file under the
// configured log directory.
package logging
