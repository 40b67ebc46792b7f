// ABOUTME: Audio device package for callback-driven duplex streams
// ABOUTME: Provides the Device interface and malgo, PortAudio, oto and null backends
// Package device opens full-duplex float32 audio streams and drives a
// ProcessFunc once per period on the driver's thread.
//
// Backends:
//   - malgo (default): miniaudio duplex device
//   - portaudio: build with -tags portaudio
//   - oto: output only, build with -tags oto
//   - null: ticker-driven, no hardware
//
// Example:
//
//	dev, err := device.New("malgo")
//	err = dev.Open(device.Config{SampleRate: 48000, PeriodFrames: 256,
//	    InputChannels: 2, OutputChannels: 2}, process)
//	err = dev.Start()
package device
