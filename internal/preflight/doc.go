// Package preflight provides readiness checks for the filesystem paths and
// storage backend localqueue depends on.
//
// The daemon runs RunDirectories before taking its lock and refuses to start
// if any check fails. The CLI "localqueue status" command runs RunAll to show
// the same results alongside daemon state.
package preflight
