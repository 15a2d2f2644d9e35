// Package framing turns the raw serial byte stream into discrete frame
// payloads. A frame is announced by a header line ending in "mlen=<n>",
// followed immediately by exactly n payload bytes.
package framing

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var headerPattern = regexp.MustCompile(`mlen=(\d+)$`)

// Scanner reads frames off a byte stream. It is not safe for concurrent use.
type Scanner struct {
	r *bufio.Reader
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame is available and returns its payload as
// text. Lines that do not match the header pattern are skipped. Errors from
// the underlying reader propagate so the caller can reconnect.
func (s *Scanner) Next() (string, error) {
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return "", err
		}
		m := headerPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		length, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return "", err
		}
		return decodeText(buf), nil
	}
}

// decodeText decodes the payload as UTF-8, falling back to a permissive
// single-byte mapping (every byte to its code point) for garbled frames.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
