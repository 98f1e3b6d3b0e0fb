// Package dbus carries callfocus over the session bus. It exports the
// focus command surface (io.github.jmylchreest.CallFocus) for callfocusd,
// provides the matching client for the CLI, and talks to the desktop
// services the daemon drives: the freedesktop notification server, MPRIS
// media players, and the bus name that marks exclusive focus ownership.
package dbus
