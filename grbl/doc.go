// Package grbl interprets the line protocol spoken by GRBL motion controllers.
//
// Classify and ParseMessage recognize the response lines of GRBL 0.9 and 1.1.
// ParseStatus decodes real-time status reports in both formats. Handler plugs
// the interpreter into a connection.Connection as its frame handler and keeps
// the connection's machine status current.
package grbl
