// Package daemon holds the supporting machinery of callfocusd: the
// config hot-reload watcher, the in-memory transition history, and the
// notifier the daemon uses to report its own events.
package daemon
