// ABOUTME: Package documentation for the audio engine
// ABOUTME: Describes the callback contract and session hand-off
// Package engine mixes WAV playback into a duplex audio stream and records
// the stream input to WAV.
//
// The device callback (Process) owns the active sessions. Control methods
// build a session, swap it in atomically, and close the previous one only
// once the callback can no longer be using it. Sessions that end on the
// audio thread are closed by a reaper goroutine and reported on Events.
//
// Example:
//
//	e := engine.New(engine.Config{Backend: "malgo"}, nil)
//	if err := e.Initialize(48000, 256); err != nil {
//		log.Fatal(err)
//	}
//	e.Start()
//	defer e.Stop()
//	e.StartPlayback("contest.wav", 1)
package engine
