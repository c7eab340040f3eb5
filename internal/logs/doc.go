// Package logs reads the longrec log file for `longrec logs`.
//
// Last returns the final lines with bounded memory, ReadFrom continues at a
// byte offset and Follow streams appended lines as the file grows, restarting
// from the top when the file is truncated or replaced.
package logs
