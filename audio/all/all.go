// Package all registers every capture backend.
package all

import (
	_ "github.com/lisuiheng/multisample-go/audio/miniaudio"
	_ "github.com/lisuiheng/multisample-go/audio/portaudio"
)
