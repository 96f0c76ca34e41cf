// Package cliconfig holds the grblmon configuration and its sources:
// command-line flags, GRBLMON_* environment variables and a TOML file.
//
// Precedence is flags > environment > file > defaults. Sources other than
// flags are applied through a "changed" set of flag names so an explicitly
// set flag is never overridden.
package cliconfig
