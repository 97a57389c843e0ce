// Package process manages the lifecycle of a supervised subprocess.
//
// A Manager spawns the child in its own process group, then watches it
// two ways at once: it waits for the process to exit, and it runs an
// active health check on an interval. A failed health check means the
// child is hung but alive; the watchdog kills it and the failure flows
// through the same restart path as a crash.
//
// Restarts follow an exponential backoff sequence:
//
//	delay(n+1) = min(delay(n) * multiplier, cap)
//
// Every unexpected exit is recorded as a CrashEvent carrying the exit
// code, uptime, restart attempt and a bounded tail of the child's
// stderr. Once the restart budget is spent the manager enters a
// terminal given-up state and keeps serving stats and crash history,
// but never respawns on its own.
//
// Shutdown sends SIGTERM to the whole process group, waits out a grace
// period, then SIGKILLs.
package process
