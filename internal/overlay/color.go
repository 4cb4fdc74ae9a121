package overlay

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

var defaultColor = color.RGBA{R: 0xff, A: 0xff} // nolint: gochecknoglobals

// normalizeColor accepts CSS colour names, `#rgb`, `#rrggbb` and `rgb(r,g,b)` and returns the `#rrggbb` form.
// Anything else is rejected, the value ends up inside a style attribute and is never passed through verbatim.
func normalizeColor(value string) (string, bool) {
	c, ok := parseColor(value)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), true
}

func parseColor(value string) (color.RGBA, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return color.RGBA{}, false
	}
	if c, ok := colornames.Map[value]; ok {
		return c, true
	}

	if strings.HasPrefix(value, "#") {
		hex := value[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return color.RGBA{}, false
		}
		rgb, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, false
		}
		return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}, true
	}

	if strings.HasPrefix(value, "rgb(") && strings.HasSuffix(value, ")") {
		fragments := strings.Split(strings.TrimSuffix(strings.TrimPrefix(value, "rgb("), ")"), ",")
		if len(fragments) != 3 {
			return color.RGBA{}, false
		}
		var channels [3]uint8
		for i, fragment := range fragments {
			channel, err := strconv.ParseUint(strings.TrimSpace(fragment), 10, 8)
			if err != nil {
				return color.RGBA{}, false
			}
			channels[i] = uint8(channel)
		}
		return color.RGBA{R: channels[0], G: channels[1], B: channels[2], A: 0xff}, true
	}

	return color.RGBA{}, false
}
