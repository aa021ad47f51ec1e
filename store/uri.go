package store

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// File URI helpers per RFC 8089, with RFC 3986 percent-encoding of path
// segments. Relative paths become "file:<segments>", absolute paths
// "file:///...", Windows drive-letter paths keep the colon, and UNC paths
// carry their authority.

var driveLetter = regexp.MustCompile(`^[A-Za-z]:`)

// PathToURI renders a filesystem path as a file URI.
func PathToURI(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	switch {
	case strings.HasPrefix(p, "//"):
		// UNC: //host/share/...
		rest := strings.TrimPrefix(p, "//")
		authority, tail, _ := strings.Cut(rest, "/")
		if tail == "" {
			return "file://" + authority
		}
		return "file://" + authority + "/" + escapePath(tail)
	case driveLetter.MatchString(p):
		drive := p[:2]
		return "file:///" + drive + escapePath(p[2:])
	case strings.HasPrefix(p, "/"):
		return "file://" + escapePath(p)
	default:
		return "file:" + escapePath(p)
	}
}

// URIToPath is the inverse of PathToURI.
func URIToPath(u string) (string, error) {
	if !strings.HasPrefix(u, "file:") {
		return "", fmt.Errorf("%w: %q is not a file URI", ErrStore, u)
	}
	rest := u[len("file:"):]
	if !strings.HasPrefix(rest, "//") {
		return unescapePath(rest)
	}
	rest = rest[2:]
	authority, tail, _ := strings.Cut(rest, "/")
	path, err := unescapePath(tail)
	if err != nil {
		return "", err
	}
	if authority != "" && authority != "localhost" {
		return "//" + authority + "/" + path, nil
	}
	if driveLetter.MatchString(path) {
		return path, nil
	}
	return "/" + path, nil
}

// escapePath percent-encodes each path segment, keeping RFC 3986
// unreserved characters and segment-legal sub-delims.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = escapeSegment(s)
	}
	return strings.Join(segs, "/")
}

func escapeSegment(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSegmentByte(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isSegmentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '.', '_', '~', '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', ':', '@':
		return true
	}
	return false
}

func unescapePath(p string) (string, error) {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		dec, err := url.PathUnescape(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStore, err)
		}
		segs[i] = dec
	}
	return strings.Join(segs, "/"), nil
}
