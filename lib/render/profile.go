// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// Profile maps a color mode name to a termenv profile. "auto" (or "")
// detects the profile of output from its terminal and environment.
func Profile(mode string, output io.Writer) (termenv.Profile, error) {
	switch mode {
	case "", "auto":
		return termenv.NewOutput(output).EnvColorProfile(), nil
	case "ascii":
		return termenv.Ascii, nil
	case "ansi":
		return termenv.ANSI, nil
	case "ansi256":
		return termenv.ANSI256, nil
	case "truecolor":
		return termenv.TrueColor, nil
	default:
		return termenv.Ascii, fmt.Errorf("unknown color mode %q", mode)
	}
}
