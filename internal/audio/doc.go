// Package audio plays call tones: the incoming ring tone and the outgoing
// ring-back tone. It uses the beep library to decode WAV, OGG, and MP3
// files and loops them through the speaker until stopped.
package audio
