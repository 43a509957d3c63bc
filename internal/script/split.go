package script

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Block is one framed object read back from a script.
type Block struct {
	Hash           string
	TerminatorHash string
	Body           string
	// Line is the 1-based line of the header marker.
	Line int
	// Stamped is true when both markers carry the expected run hash.
	Stamped bool
}

// MalformedError reports a script whose framing cannot be followed.
type MalformedError struct {
	Line   int
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed script at line %d: %s", e.Line, e.Reason)
}

const maxLine = 64 * 1024 * 1024

// Split reads framed blocks from r. Text outside blocks is ignored. With
// an empty expectedHash a block counts as stamped when its header and
// terminator agree on a non-empty hash.
func Split(r io.Reader, expectedHash string) ([]Block, error) {
	sc := newScanner(r)

	var (
		blocks []Block
		cur    *Block
		body   []string
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		line := strings.TrimSuffix(raw, "\r")

		if cur == nil {
			if hash, ok := strings.CutPrefix(line, objMarker); ok {
				cur = &Block{Hash: hash, Line: lineNo}
				body = body[:0]
			}
			continue
		}

		if hash, ok := strings.CutPrefix(line, goMarker); ok {
			cur.TerminatorHash = hash
			cur.Body = strings.Join(body, lineFeed)
			cur.Stamped = stamped(cur.Hash, cur.TerminatorHash, expectedHash)
			blocks = append(blocks, *cur)
			cur = nil
			continue
		}
		if strings.HasPrefix(line, objMarker) {
			return blocks, &MalformedError{Line: lineNo, Reason: fmt.Sprintf("block opened at line %d is not terminated", cur.Line)}
		}
		body = append(body, unescapeLine(raw))
	}
	if err := sc.Err(); err != nil {
		return blocks, errors.Wrap(err, "read script")
	}
	if cur != nil {
		return blocks, &MalformedError{Line: lineNo, Reason: fmt.Sprintf("block opened at line %d is not terminated", cur.Line)}
	}
	return blocks, nil
}

func stamped(header, terminator, expected string) bool {
	if header == "" || header != terminator {
		return false
	}
	return expected == "" || header == expected
}

// Batch is one GO-separated chunk of a hand-written script.
type Batch struct {
	Text string
	Line int
}

var separatorRe = regexp.MustCompile(`(?i)^\s*GO\s*(--.*)?$`)

// SplitBatches splits r on lines that consist solely of the GO separator.
// Blank batches are dropped.
func SplitBatches(r io.Reader) ([]Batch, error) {
	sc := newScanner(r)

	var (
		batches []Batch
		lines   []string
		start   = 1
		lineNo  int
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, lineFeed))
		if text != "" {
			batches = append(batches, Batch{Text: text, Line: start})
		}
		lines = lines[:0]
		start = lineNo + 1
	}
	for sc.Scan() {
		lineNo++
		line := strings.TrimSuffix(sc.Text(), "\r")
		if separatorRe.MatchString(line) {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read batches")
	}
	flush()
	return batches, nil
}

// newScanner splits on LF only. bufio.ScanLines would also drop a trailing
// CR, which must survive inside statement bodies.
func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	sc.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, data[:i], nil
		}
		if atEOF {
			return len(data), data, nil
		}
		return 0, nil, nil
	})
	return sc
}
