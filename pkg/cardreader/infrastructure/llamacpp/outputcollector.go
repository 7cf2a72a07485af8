package llamacpp

import (
	"strings"
	"unicode"
)

// outputCollector turns the raw stdout of the binary into the response. It drops the echoed prompt (if the
// binary prints it), cuts the output at the first stop sequence and holds back text that may turn out to be the
// beginning of a stop sequence, so that emitted fragments always add up to the final response.
type outputCollector struct {
	prompt   string
	stop     []string
	holdback int
	raw      strings.Builder
	start    int
	emitted  int
	stopped  bool
}

func newOutputCollector(prompt string, stop []string) *outputCollector {
	holdback := 0
	for _, s := range stop {
		holdback = max(holdback, len(s)-1)
	}
	return &outputCollector{
		prompt:   prompt,
		stop:     stop,
		holdback: holdback,
		start:    -1,
	}
}

// add returns the fragment which can be shown to the user and whether generation should go on.
func (o *outputCollector) add(line string) (string, bool) {
	o.raw.WriteString(line)
	if !o.locateStart() {
		return "", true
	}
	text, stopped := o.cutText()
	limit := len(strings.TrimRightFunc(text, unicode.IsSpace))
	if !stopped {
		limit = min(limit, len(text)-o.holdback)
	}
	o.stopped = stopped
	return o.emit(text, limit), !stopped
}

// finish returns the complete response and the rest of it which hasn't been emitted yet.
func (o *outputCollector) finish() (string, string, bool) {
	if !o.locateStart() {
		return "", "", false
	}
	text, _ := o.cutText()
	response := strings.TrimRightFunc(text, unicode.IsSpace)
	return response, o.emit(response, len(response)), true
}

func (o *outputCollector) emit(text string, limit int) string {
	if limit <= o.emitted {
		return ""
	}
	fragment := text[o.emitted:limit]
	o.emitted = limit
	return fragment
}

// locateStart finds where the response begins: right after the echoed prompt, or at the very beginning if the
// binary doesn't echo it. False while it's too early to tell.
func (o *outputCollector) locateStart() bool {
	if o.start >= 0 {
		return true
	}
	raw := o.raw.String()
	switch {
	case strings.HasPrefix(raw, o.prompt):
		o.start = len(o.prompt)
	case !strings.HasPrefix(o.prompt, raw):
		o.start = 0
	default:
		return false
	}
	return true
}

func (o *outputCollector) cutText() (string, bool) {
	text := strings.TrimLeftFunc(o.raw.String()[o.start:], unicode.IsSpace)
	cut := -1
	for _, s := range o.stop {
		if s == "" {
			continue
		}
		if index := strings.Index(text, s); index != -1 && (cut == -1 || index < cut) {
			cut = index
		}
	}
	if cut == -1 {
		return text, false
	}
	return text[:cut], true
}
