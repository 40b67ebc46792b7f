// ABOUTME: Entry point for the WAV import tool
// ABOUTME: Converts MP3, FLAC, WAV or raw PCM into 16-bit WAV the console can play
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/pkg/audio"
	"github.com/harperreed/sdrconsole/pkg/audio/decode"
	"github.com/harperreed/sdrconsole/pkg/audio/wav"
)

var (
	output   = flag.String("o", "", "Output WAV path (default: input name with .wav in the current directory)")
	rate     = flag.Int("rate", audio.StreamSampleRate, "Output sample rate")
	channels = flag.Int("channels", audio.StreamChannels, "Output channels (1 or 2)")
	rawRate  = flag.Int("raw-rate", 48000, "Sample rate of headerless .raw/.pcm input")
	rawChans = flag.Int("raw-channels", 2, "Channels of headerless .raw/.pcm input")
	rawBits  = flag.Int("raw-bits", 16, "Bit depth of headerless .raw/.pcm input (16 or 24)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	if err := radio.ValidRecordFormat(*channels, *rate); err != nil {
		log.Fatalf("Invalid output format: %v", err)
	}

	dst := *output
	if dst == "" {
		base := filepath.Base(input)
		dst = strings.TrimSuffix(base, filepath.Ext(base)) + ".wav"
	}
	if abs, err := filepath.Abs(dst); err == nil {
		if in, err := filepath.Abs(input); err == nil && in == abs {
			log.Fatalf("Output %s would overwrite the input", dst)
		}
	}

	dec, err := openInput(input)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", input, err)
	}
	defer dec.Close()

	log.Printf("Importing %s (%s) -> %s (%d Hz, %d ch, 16-bit)", input, dec.Format(), dst, *rate, *channels)

	w, err := wav.Create(dst, *channels, *rate)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", dst, err)
	}

	frames, err := convert(dec, w, *channels, *rate)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Wrote %d frames (%.1f s) to %s", frames, float64(frames)/float64(*rate), dst)
}

func openInput(path string) (decode.Decoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".raw", ".pcm":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		dec, err := decode.NewPCM(f, audio.Format{
			Codec:      "pcm",
			SampleRate: *rawRate,
			Channels:   *rawChans,
			BitDepth:   *rawBits,
		})
		if err != nil {
			f.Close()
			return nil, err
		}
		return &fileDecoder{Decoder: dec, f: f}, nil
	default:
		return decode.Open(path)
	}
}

// fileDecoder closes the underlying file with the decoder
type fileDecoder struct {
	decode.Decoder
	f *os.File
}

func (d *fileDecoder) Close() error {
	d.Decoder.Close()
	return d.f.Close()
}
