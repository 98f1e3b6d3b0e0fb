// Package focus implements the focus arbiter: the single owner of the
// audio focus state. It serializes focus-changing commands, forwards them
// to a native collaborator and applies their outcome in the order the
// collaborator confirms them.
package focus
