package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// Event is one server-sent event. Name and Data follow the wire fields;
// Retry is non-zero only when the block carried a retry field.
type Event struct {
	ID    string
	Name  string
	Data  string
	Retry time.Duration
}

var delimiters = [][]byte{
	[]byte("\r\n\r\n"),
	[]byte("\r\r"),
	[]byte("\n\n"),
}

// Parser accumulates raw bytes and yields complete events. Incomplete
// trailing blocks are kept in the buffer until the next Feed.
type Parser struct {
	buf []byte
}

// Feed appends chunk to the buffer and returns every event completed by it.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)

	var events []Event
	for {
		block, rest, ok := nextBlock(p.buf)
		if !ok {
			return events
		}
		p.buf = rest
		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}
}

// nextBlock splits off the earliest complete event block. When two
// delimiters match at the same offset the longer one wins, so that
// "\r\n\r\n" is not read as "\r\r" plus stray newlines.
func nextBlock(buf []byte) (block, rest []byte, ok bool) {
	at := -1
	width := 0
	for _, d := range delimiters {
		i := bytes.Index(buf, d)
		if i < 0 {
			continue
		}
		if at < 0 || i < at || (i == at && len(d) > width) {
			at = i
			width = len(d)
		}
	}
	if at < 0 {
		return nil, nil, false
	}
	return buf[:at], buf[at+width:], true
}

func parseBlock(block []byte) (Event, bool) {
	if len(block) == 0 || block[0] == ':' {
		return Event{}, false
	}

	var (
		ev    Event
		data  []string
		known bool
	)
	for _, line := range splitLines(block) {
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		field, value := splitField(line)
		switch field {
		case "id":
			ev.ID = value
			known = true
		case "event":
			ev.Name = value
			known = true
		case "data":
			data = append(data, value)
			known = true
		case "retry":
			ms, err := strconv.Atoi(value)
			if err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
				known = true
			}
		}
	}
	if !known {
		return Event{}, false
	}
	ev.Data = strings.Join(data, "\n")
	return ev, true
}

func splitLines(block []byte) []string {
	s := strings.ReplaceAll(string(block), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// splitField splits a line at the first colon. A single space after the
// colon is not part of the value.
func splitField(line string) (field, value string) {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return line, ""
	}
	field, value = line[:i], line[i+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}
