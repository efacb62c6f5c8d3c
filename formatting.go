package logust

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultFormat is the format template used when a handler does not supply
// its own.
const DefaultFormat = "{time} | {level:<8} | {name}:{function}:{line} - {message}"

// DefaultTimeFormat is the timestamp layout used by {time} and JSON output.
const DefaultTimeFormat = "2006-01-02 15:04:05.000"

type tokenKind int

const (
	tokenStatic tokenKind = iota
	tokenTime
	tokenLevel
	tokenMessage
	tokenName
	tokenModule
	tokenFunction
	tokenLine
	tokenFile
	tokenElapsed
	tokenThread
	tokenProcess
	tokenExtra
)

// token is one pre-parsed segment of a format template: either literal text
// or a placeholder with an optional alignment spec.
type token struct {
	kind  tokenKind
	text  string // literal text, or the extra key for tokenExtra
	align byte   // '<', '>', '^', or 0 for none
	width int
}

// formatSpec is a handler's format configuration, parsed once at handler
// registration and reused for every render.
type formatSpec struct {
	template   string
	tokens     []token
	serialize  bool
	timeLayout string
	reqs       requirements
}

func newFormatSpec(template string, serialize bool) *formatSpec {
	if template == "" {
		template = DefaultFormat
	}
	tokens := parseTemplate(template)
	spec := &formatSpec{
		template:   template,
		tokens:     tokens,
		serialize:  serialize,
		timeLayout: DefaultTimeFormat,
	}
	if serialize {
		// The JSON schema includes caller fields when present, so a
		// serializing handler wants caller info collected.
		spec.reqs = requirements{caller: true}
	} else {
		spec.reqs = computeRequirements(tokens)
	}
	return spec
}

var tokenNames = map[string]tokenKind{
	"time":     tokenTime,
	"level":    tokenLevel,
	"message":  tokenMessage,
	"name":     tokenName,
	"module":   tokenModule,
	"function": tokenFunction,
	"line":     tokenLine,
	"file":     tokenFile,
	"elapsed":  tokenElapsed,
	"thread":   tokenThread,
	"process":  tokenProcess,
}

// parseTemplate splits a template into literal and placeholder tokens.
// Unrecognized placeholders are preserved as literal text including the
// braces, and a malformed alignment spec degrades the token to its plain
// value rather than failing the parse.
func parseTemplate(template string) []token {
	var tokens []token
	var static strings.Builder

	flush := func() {
		if static.Len() > 0 {
			tokens = append(tokens, token{kind: tokenStatic, text: static.String()})
			static.Reset()
		}
	}

	for i := 0; i < len(template); {
		c := template[i]
		if c != '{' {
			static.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			static.WriteString(template[i:])
			break
		}
		placeholder := template[i+1 : i+1+end]
		i += end + 2

		tok, ok := parsePlaceholder(placeholder)
		if !ok {
			static.WriteString("{" + placeholder + "}")
			continue
		}
		flush()
		tokens = append(tokens, tok)
	}
	flush()
	return tokens
}

func parsePlaceholder(placeholder string) (token, bool) {
	if key, ok := strings.CutPrefix(placeholder, "extra["); ok {
		key, ok = strings.CutSuffix(key, "]")
		if !ok || strings.ContainsRune(key, ']') {
			return token{}, false
		}
		return token{kind: tokenExtra, text: key}, true
	}

	name, spec, hasSpec := strings.Cut(placeholder, ":")
	kind, ok := tokenNames[name]
	if !ok {
		return token{}, false
	}
	tok := token{kind: kind}
	if hasSpec {
		// Bad specs degrade to the unformatted value.
		if align, width, ok := parseAlignSpec(spec); ok {
			tok.align = align
			tok.width = width
		}
	}
	return tok, true
}

func parseAlignSpec(spec string) (align byte, width int, ok bool) {
	if spec == "" {
		return 0, 0, false
	}
	align = '<'
	switch spec[0] {
	case '<', '>', '^':
		align = spec[0]
		spec = spec[1:]
	}
	width, err := strconv.Atoi(spec)
	if err != nil || width < 0 {
		return 0, 0, false
	}
	return align, width, true
}

// computeRequirements derives which context fields a token set depends on.
func computeRequirements(tokens []token) requirements {
	var reqs requirements
	for _, tok := range tokens {
		switch tok.kind {
		case tokenName, tokenModule, tokenFunction, tokenLine, tokenFile:
			reqs.caller = true
		case tokenThread:
			reqs.thread = true
		case tokenProcess:
			reqs.process = true
		}
	}
	return reqs
}

func applyAlign(s string, align byte, width int) string {
	if width == 0 || len(s) >= width {
		return s
	}
	pad := width - len(s)
	switch align {
	case '>':
		return strings.Repeat(" ", pad) + s
	case '^':
		left := pad / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
	default:
		return s + strings.Repeat(" ", pad)
	}
}

// render formats a record against the pre-parsed template. Message content is
// substituted as a terminal value and never re-scanned for placeholders, so a
// message containing literal "{level}" passes through verbatim.
func (f *formatSpec) render(rec *Record, colorize bool) string {
	if f.serialize {
		return f.renderJSON(rec)
	}

	levelName := rec.Level.Name
	levelColor := rec.Level.Color

	var out strings.Builder
	out.Grow(len(f.template) + 64)

	for _, tok := range f.tokens {
		var value string
		styled := false
		switch tok.kind {
		case tokenStatic:
			out.WriteString(tok.text)
			continue
		case tokenTime:
			value = rec.Time.Format(f.timeLayout)
			if colorize {
				value = dimText(value)
				styled = true
			}
		case tokenLevel:
			value = applyAlign(levelName, tok.align, tok.width)
			if colorize {
				value = colorText(value, levelColor, true)
				styled = true
			}
		case tokenMessage:
			value = rec.Message
			if colorize {
				value = applyColorMarkup(value)
				styled = true
			}
		case tokenName, tokenModule:
			value = rec.Caller.Module
		case tokenFunction:
			value = rec.Caller.Function
		case tokenLine:
			value = strconv.Itoa(rec.Caller.Line)
		case tokenFile:
			value = rec.Caller.File
		case tokenElapsed:
			value = formatElapsed(rec.Elapsed)
			if colorize {
				value = dimText(value)
				styled = true
			}
		case tokenThread:
			value = rec.Thread.Name + ":" + strconv.FormatUint(rec.Thread.ID, 10)
		case tokenProcess:
			value = rec.Process.Name + ":" + strconv.Itoa(rec.Process.ID)
		case tokenExtra:
			value = rec.Extra[tok.text]
		}

		if tok.kind != tokenLevel {
			// Pad before styling so ANSI codes do not count toward the width.
			value = applyAlign(value, tok.align, tok.width)
		}
		if colorize && !styled {
			switch tok.kind {
			case tokenName, tokenModule, tokenFunction, tokenLine, tokenFile, tokenThread, tokenProcess:
				value = cyanText(value)
			}
		}
		out.WriteString(value)
	}

	if rec.Exception != "" {
		out.WriteByte('\n')
		out.WriteString(rec.Exception)
	}
	return out.String()
}

// jsonRecord is the newline-delimited JSON schema. Optional fields are
// omitted entirely when empty rather than emitted as null.
type jsonRecord struct {
	Time      string            `json:"time"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Name      string            `json:"name,omitempty"`
	Function  string            `json:"function,omitempty"`
	Line      int               `json:"line,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	Exception string            `json:"exception,omitempty"`
}

func (f *formatSpec) renderJSON(rec *Record) string {
	out := jsonRecord{
		Time:      rec.Time.Format(f.timeLayout),
		Level:     rec.Level.Name,
		Message:   rec.Message,
		Name:      rec.Caller.Module,
		Function:  rec.Caller.Function,
		Line:      rec.Caller.Line,
		Extra:     rec.Extra,
		Exception: rec.Exception,
	}
	data, err := json.Marshal(out)
	if err != nil {
		return rec.Message
	}
	return string(data)
}
