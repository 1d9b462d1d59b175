// Package contrast picks a readable foreground for the indicator's
// background color.
package contrast

import (
	"fmt"
	"strconv"
	"strings"
)

// Foreground is a CSS color usable as text color.
type Foreground string

const (
	Dark  Foreground = "#000"
	Light Foreground = "#fff"
)

// threshold is the perceived-brightness cut-off; brighter backgrounds get
// dark text.
const threshold = 186

// Luminance returns 0.299R + 0.587G + 0.114B for a "#rrggbb" color. The
// leading '#' is optional.
func Luminance(hex string) (float64, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return 0, fmt.Errorf("contrast: %q is not a 6-digit hex color", hex)
	}
	var rgb [3]float64
	for i := range rgb {
		v, err := strconv.ParseUint(h[2*i:2*i+2], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("contrast: %q is not a 6-digit hex color", hex)
		}
		rgb[i] = float64(v)
	}
	return 0.299*rgb[0] + 0.587*rgb[1] + 0.114*rgb[2], nil
}

// PickForeground returns Dark when the background's luminance exceeds 186
// and Light otherwise.
func PickForeground(backgroundHex string) (Foreground, error) {
	l, err := Luminance(backgroundHex)
	if err != nil {
		return Light, err
	}
	if l > threshold {
		return Dark, nil
	}
	return Light, nil
}
