// Package handlers provides the handlers that can be declared in the
// [[handlers]] section of the configuration: "log" writes each item to the
// log, "command" pipes the payload to an external program.
package handlers
