package gitlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DateLayout is the default git date format, e.g. "Thu Mar 14 10:22:11 2019 +0100".
const DateLayout = "Mon Jan 2 15:04:05 2006 -0700"

const (
	commitMarker = "commit "
	mergeHeader  = "Merge:"
	authorHeader = "Author:"
	dateHeader   = "Date:"

	// maxLineSize bounds a single log line; long merge messages and deep
	// paths stay well below it.
	maxLineSize = 4 << 20

	// cancelCheckInterval is how many lines are read between context checks.
	cancelCheckInterval = 4096
)

// ErrInvalidFormat is returned when the input is not a well-formed log.
// The whole input is rejected.
var ErrInvalidFormat = errors.New("input not in expected log format")

// ParseError describes the malformed or truncated commit block that caused
// the input to be rejected.
type ParseError struct {
	Line     int
	Revision string
	Reason   string
}

func (e *ParseError) Error() string {
	if e.Revision == "" {
		return fmt.Sprintf("%s: line %d: %s", ErrInvalidFormat, e.Line, e.Reason)
	}

	return fmt.Sprintf("%s: line %d (commit %s): %s", ErrInvalidFormat, e.Line, e.Revision, e.Reason)
}

// Unwrap returns ErrInvalidFormat.
func (e *ParseError) Unwrap() error {
	return ErrInvalidFormat
}

// Options tune the parser.
type Options struct {
	// OnlyFileManipulations keeps only A, M and D changes.
	OnlyFileManipulations bool

	// MaxBytes bounds the amount of log text read. Zero means no limit.
	MaxBytes int64

	// Logger receives debug output. Nil uses slog.Default().
	Logger *slog.Logger
}

type parseState int

const (
	stateSeekingCommit parseState = iota
	stateReadingAuthor
	stateReadingDate
	stateReadingMessage
	stateReadingChanges
)

func (s parseState) String() string {
	switch s {
	case stateSeekingCommit:
		return "seeking commit marker"
	case stateReadingAuthor:
		return "reading author"
	case stateReadingDate:
		return "reading date"
	case stateReadingMessage:
		return "reading message"
	case stateReadingChanges:
		return "reading change list"
	default:
		return "unknown"
	}
}

// parser is the per-input state machine.
type parser struct {
	opts    Options
	state   parseState
	line    int
	current Commit
	message []string
	// inBody is set once the blank line separating headers from the
	// message has been consumed.
	inBody  bool
	commits []Commit
}

// Parse reads the whole log from r and returns its commits in input order.
// Any malformed block rejects the entire input with a *ParseError.
func Parse(ctx context.Context, r io.Reader, opts Options) ([]Commit, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &parser{opts: opts}

	if opts.MaxBytes > 0 {
		r = &boundedReader{r: r, remaining: opts.MaxBytes, limit: opts.MaxBytes}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		p.line++

		if p.line%cancelCheckInterval == 0 {
			err := ctx.Err()
			if err != nil {
				return nil, fmt.Errorf("parse log: %w", err)
			}
		}

		err := p.feed(strings.TrimSuffix(scanner.Text(), "\r"))
		if err != nil {
			// A failed read hands the scanner a truncated last line; report
			// the read failure instead of the parse error it causes.
			readErr := scanner.Err()
			if readErr != nil {
				return nil, fmt.Errorf("read log: %w", readErr)
			}

			return nil, err
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	err = p.finish()
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "log parsed", "lines", p.line, "commits", len(p.commits))

	return p.commits, nil
}

func (p *parser) fail(reason string) error {
	return &ParseError{Line: p.line, Revision: p.current.Revision, Reason: reason}
}

func (p *parser) feed(line string) error {
	switch p.state {
	case stateSeekingCommit:
		if strings.HasPrefix(line, commitMarker) {
			p.begin(line)
		}

		return nil

	case stateReadingAuthor:
		switch {
		case strings.HasPrefix(line, mergeHeader):
			p.current.Merge = true

			return nil
		case strings.HasPrefix(line, authorHeader):
			return p.readAuthor(line)
		default:
			return p.fail("expected Author header")
		}

	case stateReadingDate:
		if !strings.HasPrefix(line, dateHeader) {
			return p.fail("expected Date header")
		}

		return p.readDate(line)

	case stateReadingMessage:
		return p.readMessage(line)

	case stateReadingChanges:
		switch {
		case line == "":
			p.commit()
			p.state = stateSeekingCommit
		case strings.HasPrefix(line, commitMarker):
			p.commit()
			p.begin(line)
		default:
			return p.readChange(line)
		}
	}

	return nil
}

func (p *parser) begin(line string) {
	fields := strings.Fields(line)

	p.current = Commit{}
	if len(fields) > 1 {
		p.current.Revision = fields[1]
	}

	p.message = p.message[:0]
	p.inBody = false
	p.state = stateReadingAuthor
}

func (p *parser) readAuthor(line string) error {
	ident := strings.TrimSpace(strings.TrimPrefix(line, authorHeader))

	name, email := ident, ""
	if open := strings.IndexByte(ident, '<'); open >= 0 {
		name = strings.TrimSpace(ident[:open])
		email = strings.TrimSuffix(ident[open+1:], ">")
	}

	if name == "" {
		return p.fail("empty author")
	}

	p.current.Author = name
	p.current.Email = email
	p.state = stateReadingDate

	return nil
}

func (p *parser) readDate(line string) error {
	raw := strings.TrimSpace(strings.TrimPrefix(line, dateHeader))

	stamp, err := time.Parse(DateLayout, raw)
	if err != nil {
		return p.fail(fmt.Sprintf("bad date %q", raw))
	}

	p.current.Time = stamp
	p.state = stateReadingMessage

	return nil
}

func (p *parser) readMessage(line string) error {
	// Message lines are indented, so a bare marker starts the next commit
	// of an empty-message, change-less block.
	if p.inBody && strings.HasPrefix(line, commitMarker) {
		p.current.Message = strings.Join(p.message, " ")
		p.commit()
		p.begin(line)

		return nil
	}

	if line != "" {
		p.inBody = true

		// git indents paragraph breaks like any other message line.
		if text := strings.TrimSpace(line); text != "" {
			p.message = append(p.message, text)
		}

		return nil
	}

	if !p.inBody {
		// Separator between the headers and the message.
		p.inBody = true

		return nil
	}

	p.current.Message = strings.Join(p.message, " ")

	if p.current.Merge {
		p.commit()
		p.state = stateSeekingCommit

		return nil
	}

	p.state = stateReadingChanges

	return nil
}

func (p *parser) readChange(line string) error {
	var fields []string
	if strings.Contains(line, "\t") {
		fields = strings.Split(strings.TrimSpace(line), "\t")
	} else {
		fields = strings.Fields(line)
	}

	if len(fields) < 2 || fields[0] == "" {
		return p.fail(fmt.Sprintf("bad change line %q", line))
	}

	change := RawChange{Action: Action(strings.TrimSpace(fields[0]))}

	if len(fields) >= 3 {
		change.FromPath = strings.TrimSpace(fields[1])
		change.Path = strings.TrimSpace(fields[2])
	} else {
		change.Path = strings.TrimSpace(fields[1])
	}

	if p.opts.OnlyFileManipulations && !change.Action.IsManipulation() {
		return nil
	}

	p.current.Changes = append(p.current.Changes, change)

	return nil
}

// commit appends the current commit. Merge commits always carry an empty
// change list.
func (p *parser) commit() {
	if p.current.Merge || p.current.Changes == nil {
		p.current.Changes = []Change{}
	}

	p.commits = append(p.commits, p.current)
	p.current = Commit{}
}

func (p *parser) finish() error {
	switch p.state {
	case stateSeekingCommit:
		return nil
	case stateReadingAuthor, stateReadingDate:
		return p.fail("truncated commit block while " + p.state.String())
	case stateReadingMessage:
		if !p.inBody {
			return p.fail("truncated commit block while " + p.state.String())
		}

		p.current.Message = strings.Join(p.message, " ")
		p.commit()
	case stateReadingChanges:
		p.commit()
	}

	return nil
}
