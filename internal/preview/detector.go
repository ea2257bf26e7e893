package preview

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrStreamEnded means the preview's log closed before it served a request.
	ErrStreamEnded = errors.New("preview log ended before the first request")

	// ErrReadinessTimeout means the preview did not become ready in time.
	ErrReadinessTimeout = errors.New("preview did not become ready in time")
)

// VerdictKind is the state a Detector reports after each line.
type VerdictKind int

const (
	Pending VerdictKind = iota
	Ready
	Fatal
)

func (k VerdictKind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("VerdictKind(%d)", int(k))
}

// Verdict is a Detector's answer. URL is set for Ready, Err for Fatal.
type Verdict struct {
	Kind VerdictKind
	URL  string
	Err  error
}

// Detector decides from the preview's log when it is ready to be captured.
// Feed is called once per line until it returns a non-Pending verdict.
// End is called if the log closes first.
type Detector interface {
	Feed(line string) Verdict
	End() Verdict
}

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// LogDetector waits for a listening line carrying the base URL, then for a
// line showing a request was served.
type LogDetector struct {
	listening *regexp.Regexp
	request   *regexp.Regexp
	url       string
}

// NewLogDetector compiles the two patterns. The listening pattern's first
// capture group is the URL.
func NewLogDetector(listening, request string) (*LogDetector, error) {
	l, err := regexp.Compile(listening)
	if err != nil {
		return nil, fmt.Errorf("listening pattern: %w", err)
	}
	if l.NumSubexp() < 1 {
		return nil, fmt.Errorf("listening pattern %q has no capture group for the URL", listening)
	}
	r, err := regexp.Compile(request)
	if err != nil {
		return nil, fmt.Errorf("request pattern: %w", err)
	}
	return &LogDetector{listening: l, request: r}, nil
}

// URL returns the URL recorded so far.
func (d *LogDetector) URL() string {
	return d.url
}

func (d *LogDetector) Feed(line string) Verdict {
	line = ansiSeq.ReplaceAllString(line, "")

	if d.url == "" {
		m := d.listening.FindStringSubmatch(line)
		if m == nil {
			return Verdict{Kind: Pending}
		}
		if url := strings.TrimRight(m[1], ".,;)"); url != "" {
			d.url = url
		}
		// The request marker only counts on a later line.
		return Verdict{Kind: Pending}
	}

	if d.request.MatchString(line) {
		return Verdict{Kind: Ready, URL: d.url}
	}
	return Verdict{Kind: Pending}
}

func (d *LogDetector) End() Verdict {
	if d.url == "" {
		return Verdict{Kind: Fatal, Err: fmt.Errorf("%w: never announced a URL", ErrStreamEnded)}
	}
	return Verdict{Kind: Fatal, Err: fmt.Errorf("%w: listening on %s", ErrStreamEnded, d.url)}
}
