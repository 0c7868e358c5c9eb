package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lisuiheng/multisample-go/audio"
	"github.com/lisuiheng/multisample-go/core"
)

// parseNotes parses a comma separated list of MIDI note numbers.
func parseNotes(s string) ([]uint8, error) {
	var notes []uint8
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid note %q: %w", field, err)
		}
		if n < 0 || n > 127 {
			return nil, fmt.Errorf("note %d out of range [0, 127]", n)
		}
		notes = append(notes, uint8(n))
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no notes in %q", s)
	}
	return notes, nil
}

func report(w io.Writer, notes []uint8, samples []core.NoteSample, channels int) {
	fmt.Fprintf(w, "%4s  %8s  %8s  %7s  %7s\n", "note", "samples", "frames", "peak", "rms")
	for i, s := range samples {
		peak, rms := audio.Levels(s)
		frames := len(s)
		if channels > 0 {
			frames /= channels
		}
		fmt.Fprintf(w, "%4d  %8d  %8d  %7.4f  %7.4f\n", notes[i], len(s), frames, peak, rms)
	}
}
