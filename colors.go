package logust

import "strings"

// ANSI color codes by name. Level colors and message markup tags both resolve
// through this table.
var ansiColors = map[string]string{
	"black":   "30",
	"red":     "31",
	"green":   "32",
	"yellow":  "33",
	"blue":    "34",
	"magenta": "35",
	"cyan":    "36",
	"white":   "37",

	"bright_black":   "90",
	"bright_red":     "91",
	"bright_green":   "92",
	"bright_yellow":  "93",
	"bright_blue":    "94",
	"bright_magenta": "95",
	"bright_cyan":    "96",
	"bright_white":   "97",
}

// markup style tags accepted inside messages, e.g. "<bold>hi</bold>".
var ansiStyles = map[string]string{
	"bold":      "\x1b[1m",
	"b":         "\x1b[1m",
	"dim":       "\x1b[2m",
	"italic":    "\x1b[3m",
	"i":         "\x1b[3m",
	"underline": "\x1b[4m",
	"u":         "\x1b[4m",
	"strike":    "\x1b[9m",
	"s":         "\x1b[9m",
}

func colorText(text, colorName string, bold bool) string {
	code, ok := ansiColors[strings.ToLower(colorName)]
	if !ok {
		code = "0"
	}
	if bold {
		return "\x1b[1;" + code + "m" + text + "\x1b[0m"
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}

func dimText(text string) string {
	return "\x1b[2m" + text + "\x1b[0m"
}

func cyanText(text string) string {
	return "\x1b[36m" + text + "\x1b[0m"
}

func tagToANSI(tag string) (string, bool) {
	lower := strings.ToLower(tag)
	if style, ok := ansiStyles[lower]; ok {
		return style, true
	}
	normalized := strings.ReplaceAll(lower, "light-", "bright_")
	if code, ok := ansiColors[normalized]; ok {
		return "\x1b[" + code + "m", true
	}
	return "", false
}

// applyColorMarkup expands <red>...</red> style tags in message text into
// ANSI escapes. Unknown tags and unclosed brackets pass through verbatim.
// Closing a tag restores the styles still on the stack, so nesting works.
func applyColorMarkup(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	var stack []string

	for i := 0; i < len(text); {
		c := text[i]
		if c != '<' {
			out.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(text[i+1:], '>')
		if end < 0 {
			out.WriteString(text[i:])
			break
		}
		tag := text[i+1 : i+1+end]
		i += end + 2

		if closing, ok := strings.CutPrefix(tag, "/"); ok {
			if _, known := tagToANSI(closing); known && len(stack) > 0 {
				stack = stack[:len(stack)-1]
				out.WriteString("\x1b[0m")
				for _, s := range stack {
					out.WriteString(s)
				}
			} else {
				out.WriteString("<" + tag + ">")
			}
			continue
		}

		if ansi, ok := tagToANSI(tag); ok {
			stack = append(stack, ansi)
			out.WriteString(ansi)
		} else {
			out.WriteString("<" + tag + ">")
		}
	}

	if len(stack) > 0 {
		out.WriteString("\x1b[0m")
	}
	return out.String()
}
