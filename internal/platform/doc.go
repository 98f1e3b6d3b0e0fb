// Package platform implements the native side of the focus arbiter.
//
// Desktop drives a Linux desktop session: it owns a session bus name while
// focus is held, pauses MPRIS players during calls, loops ring tones, and
// shows call notifications through the notification server. Recorder is an
// in-memory stand-in that records calls; callfocusd uses it for --dry-run.
package platform
