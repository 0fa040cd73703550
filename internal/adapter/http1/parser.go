package http1

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/ramaframework/rama/internal/core/domain"
)

// ParseRequestHead reads a request line and headers from r, preserving
// original header name case and order. Returns a ProtocolError on malformed
// input and a FramingLimitError if the header list exceeds maxHeaderBytes.
func ParseRequestHead(r *bufio.Reader, maxHeaderBytes int64) (Head, error) {
	line, err := readLine(r)
	if err != nil {
		return Head{}, err
	}
	method, uri, version, err := splitRequestLine(line)
	if err != nil {
		return Head{}, err
	}

	headers, err := parseHeaders(r, maxHeaderBytes)
	if err != nil {
		return Head{}, err
	}

	return Head{Method: method, URI: uri, Version: version, Headers: headers}, nil
}

// ParseResponseHead reads a status line and headers from r.
func ParseResponseHead(r *bufio.Reader, maxHeaderBytes int64) (Head, error) {
	line, err := readLine(r)
	if err != nil {
		return Head{}, err
	}
	version, status, reason, err := splitStatusLine(line)
	if err != nil {
		return Head{}, err
	}

	headers, err := parseHeaders(r, maxHeaderBytes)
	if err != nil {
		return Head{}, err
	}

	return Head{Version: version, StatusCode: status, Reason: reason, Headers: headers}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", &domain.TransportError{Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func splitRequestLine(line string) (method, uri, version string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", "", &domain.ProtocolError{Detail: "malformed request line"}
	}
	return parts[0], parts[1], parts[2], nil
}

func splitStatusLine(line string) (version string, status int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", &domain.ProtocolError{Detail: "malformed status line"}
	}
	n, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, "", &domain.ProtocolError{Detail: "malformed status code", Err: convErr}
	}
	reason = ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return parts[0], n, reason, nil
}

func parseHeaders(r *bufio.Reader, maxHeaderBytes int64) (Headers, error) {
	var headers Headers
	var total int64

	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break // blank line ends the header block
		}

		// Leading whitespace continues the previous header's value
		// (obs-fold, still seen from legacy peers; preserved verbatim).
		if (line[0] == ' ' || line[0] == '\t') && len(headers) > 0 {
			headers[len(headers)-1].Value += " " + strings.TrimSpace(line)
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &domain.ProtocolError{Detail: "malformed header line"}
		}
		value = strings.TrimSpace(value)

		total += int64(len(name)) + int64(len(value))
		if total > maxHeaderBytes {
			return nil, &domain.FramingLimitError{Limit: maxHeaderBytes, Observed: total, What: "header list"}
		}

		headers.Add(name, value)
	}

	return headers, nil
}

// WriteRequestHead encodes a request head back onto w, preserving header
// order and case exactly.
func WriteRequestHead(w *bufio.Writer, h Head) error {
	if _, err := w.WriteString(h.Method + " " + h.URI + " " + h.Version + "\r\n"); err != nil {
		return err
	}
	return writeHeaders(w, h.Headers)
}

// WriteResponseHead encodes a status head back onto w.
func WriteResponseHead(w *bufio.Writer, h Head) error {
	line := h.Version + " " + strconv.Itoa(h.StatusCode)
	if h.Reason != "" {
		line += " " + h.Reason
	}
	if _, err := w.WriteString(line + "\r\n"); err != nil {
		return err
	}
	return writeHeaders(w, h.Headers)
}

func writeHeaders(w *bufio.Writer, headers Headers) error {
	for _, f := range headers {
		if _, err := w.WriteString(f.Name + ": " + f.Value + "\r\n"); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\r\n")
	return err
}
