// Package script implements the marker-framed script format written by
// generate and read back by restore.
//
// Every object is framed as
//
//	(blank line)
//	-- SQRIBE/OBJ;<hash>
//	<statement text>
//	GO -- SQRIBE/GO;<hash>
//
// The marker text is part of the on-disk format and must not change.
package script

import (
	"bytes"
	"strings"
)

const (
	objMarker  = "-- SQRIBE/OBJ;"
	goMarker   = "GO -- SQRIBE/GO;"
	escMarker  = "-- SQRIBE/ESC;"
	markerRoot = "-- SQRIBE/"
	goRoot     = "GO -- SQRIBE/"

	lineFeed = "\n"
)

// Header returns the opening marker line for hash, without a newline.
func Header(hash string) string { return objMarker + hash }

// Terminator returns the closing marker line for hash, without a newline.
func Terminator(hash string) string { return goMarker + hash }

// Writer accumulates object blocks for one script.
type Writer struct {
	hash  string
	buf   bytes.Buffer
	count int
}

func NewWriter(hash string) *Writer {
	return &Writer{hash: hash}
}

// WriteObject appends one framed block. The body is text with trailing
// line breaks removed by TrimStatement.
func (w *Writer) WriteObject(text string) {
	w.buf.WriteString(lineFeed)
	w.buf.WriteString(Header(w.hash))
	w.buf.WriteString(lineFeed)
	w.buf.WriteString(escapeBody(TrimStatement(text)))
	w.buf.WriteString(lineFeed)
	w.buf.WriteString(Terminator(w.hash))
	w.buf.WriteString(lineFeed)
	w.count++
}

func (w *Writer) Count() int    { return w.count }
func (w *Writer) Len() int      { return w.buf.Len() }
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }
func (w *Writer) String() string {
	return w.buf.String()
}

// TrimStatement drops trailing LF characters and then trailing CR
// characters, so "x\r\n\r\n" keeps its inner "\r\n".
func TrimStatement(text string) string {
	return strings.TrimRight(strings.TrimRight(text, "\n"), "\r")
}

// escapeBody prefixes any body line that could be mistaken for a marker.
func escapeBody(text string) string {
	if !strings.Contains(text, markerRoot) {
		return text
	}
	lines := strings.Split(text, lineFeed)
	for i, line := range lines {
		if needsEscape(line) {
			lines[i] = escMarker + line
		}
	}
	return strings.Join(lines, lineFeed)
}

func needsEscape(line string) bool {
	return strings.HasPrefix(line, markerRoot) || strings.HasPrefix(line, goRoot)
}

func unescapeLine(line string) string {
	return strings.TrimPrefix(line, escMarker)
}
