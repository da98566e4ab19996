package tty

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"commitgen/cli/internal/erruser"
)

// DefaultTimeout is the hard ceiling on waiting for an answer.
const DefaultTimeout = 60 * time.Second

// ErrInterrupted is returned when the user presses Ctrl-C or Ctrl-D at a prompt.
var ErrInterrupted = errors.New("prompt interrupted")

// Option is one answer to a prompt, selected by its key.
type Option struct {
	Key   rune
	Label string
}

// Answer is the selected option. TimedOut is set when the default was taken
// because nobody answered in time.
type Answer struct {
	Index    int
	TimedOut bool
}

// KeyPrompter asks a question and reads the answer: a single key in raw mode
// when the terminal supports it, otherwise one line. One reader goroutine
// serves every Choose call, so In must not change after the first prompt.
type KeyPrompter struct {
	In   io.Reader
	Out  io.Writer
	Caps Capabilities
	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration

	start sync.Once
	keys  chan keyRead
}

// NewKeyPrompter returns a prompter on stdin and stderr.
func NewKeyPrompter() *KeyPrompter {
	return &KeyPrompter{In: os.Stdin, Out: os.Stderr, Caps: Detect(os.Stdin, os.Stderr)}
}

// input starts the reader on first use and returns its channel.
func (p *KeyPrompter) input() <-chan keyRead {
	p.start.Do(func() {
		p.keys = make(chan keyRead, 64)
		go readKeys(p.In, p.keys)
	})
	return p.keys
}

// Choose shows question with options and returns the chosen index. Enter
// picks def, as does the timeout. Without a terminal, or when reading fails,
// it returns an erruser interaction error.
func (p *KeyPrompter) Choose(ctx context.Context, question string, options []Option, def int) (Answer, error) {
	if len(options) == 0 || def < 0 || def >= len(options) {
		return Answer{}, erruser.Interaction("Nothing to choose from.", nil)
	}
	if !p.Caps.IsTerminal || p.In == nil || p.Out == nil {
		return Answer{}, erruser.Interaction("No terminal to prompt on.", nil)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fmt.Fprintf(p.Out, "%s %s ", question, renderOptions(options, def))

	raw := false
	if f, ok := p.In.(*os.File); ok && p.Caps.SupportsRawMode {
		release, err := enterRaw(int(f.Fd()))
		if err == nil {
			defer release()
			raw = true
		}
	}

	// Raw mode turns off output post-processing, so line ends need \r.
	nl := "\n"
	if raw {
		nl = "\r\n"
	}

	keys := p.input()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var line []rune
	for {
		var text string
		select {
		case <-ctx.Done():
			fmt.Fprint(p.Out, nl)
			return Answer{}, ctx.Err()
		case <-timer.C:
			fmt.Fprintf(p.Out, "%s(no answer after %s, using %q)%s", nl, timeout, options[def].Label, nl)
			return Answer{Index: def, TimedOut: true}, nil
		case k, ok := <-keys:
			switch {
			case !ok:
				fmt.Fprint(p.Out, nl)
				return Answer{}, erruser.Interaction("Could not read the answer.", io.ErrUnexpectedEOF)
			case k.err != nil && (raw || !errors.Is(k.err, io.EOF) || strings.TrimSpace(string(line)) == ""):
				fmt.Fprint(p.Out, nl)
				return Answer{}, erruser.Interaction("Could not read the answer.", k.err)
			case k.err != nil:
				// A last line without a newline still counts.
				text = string(line)
			case raw && (k.r == 3 || k.r == 4):
				fmt.Fprint(p.Out, nl)
				return Answer{}, ErrInterrupted
			case raw:
				text = string(k.r)
			case k.r != '\n':
				line = append(line, k.r)
				continue
			default:
				text = string(line)
				line = line[:0]
			}
		}
		text = strings.TrimSpace(text)
		if text == "" {
			fmt.Fprint(p.Out, nl)
			return Answer{Index: def}, nil
		}
		r := unicode.ToLower([]rune(text)[0])
		if i := indexOf(options, r); i >= 0 {
			fmt.Fprintf(p.Out, "%c%s", r, nl)
			return Answer{Index: i}, nil
		}
		if !raw {
			fmt.Fprintf(p.Out, "%s %s ", question, renderOptions(options, def))
		}
	}
}

type keyRead struct {
	r   rune
	err error
}

// readKeys sends every rune read from in until a read fails, then sends the
// error and closes out. It outlives single prompts; input typed after one
// answer is left for the next Choose.
func readKeys(in io.Reader, out chan<- keyRead) {
	defer close(out)
	br := bufio.NewReader(in)
	for {
		r, _, err := br.ReadRune()
		if err != nil {
			out <- keyRead{err: err}
			return
		}
		out <- keyRead{r: r}
	}
}

func indexOf(options []Option, r rune) int {
	for i, o := range options {
		if unicode.ToLower(o.Key) == r {
			return i
		}
	}
	return -1
}

// renderOptions renders "[C] commit  [r] regenerate" with the default key upper-cased.
func renderOptions(options []Option, def int) string {
	parts := make([]string, len(options))
	for i, o := range options {
		key := unicode.ToLower(o.Key)
		if i == def {
			key = unicode.ToUpper(o.Key)
		}
		parts[i] = fmt.Sprintf("[%c] %s", key, o.Label)
	}
	return strings.Join(parts, "  ")
}
