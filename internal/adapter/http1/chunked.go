package http1

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ramaframework/rama/internal/core/domain"
)

// ChunkedReader decodes a chunked-transfer body: each chunk is an ASCII hex
// size, optional chunk-extensions, CRLF, the chunk bytes, CRLF. Chunk
// extensions are skipped and not kept, so they are not available for
// forwarding. Trailer headers after the zero-size chunk are parsed into
// Trailers, preserving order/case.
type ChunkedReader struct {
	r         *bufio.Reader
	remaining int64
	done      bool
	Trailers  Headers
}

func NewChunkedReader(r *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{r: r}
}

func (c *ChunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}

	if c.remaining == 0 {
		size, err := c.readChunkSize()
		if err != nil {
			return 0, err
		}
		if size == 0 {
			trailers, err := parseHeaders(c.r, DefaultMaxHeaderListSize)
			if err != nil {
				return 0, err
			}
			c.Trailers = trailers
			c.done = true
			return 0, io.EOF
		}
		c.remaining = size
	}

	toRead := int64(len(p))
	if toRead > c.remaining {
		toRead = c.remaining
	}
	n, err := c.r.Read(p[:toRead])
	c.remaining -= int64(n)
	if err != nil {
		return n, &domain.TransportError{Err: err}
	}

	if c.remaining == 0 {
		if _, err := readLine(c.r); err != nil { // trailing CRLF after chunk data
			return n, err
		}
	}
	return n, nil
}

func (c *ChunkedReader) readChunkSize() (int64, error) {
	line, err := readLine(c.r)
	if err != nil {
		return 0, err
	}
	sizeHex := line
	if i := strings.IndexByte(line, ';'); i >= 0 {
		sizeHex = line[:i] // chunk-extensions discarded, not forwarded by this reader
	}
	size, err := strconv.ParseInt(strings.TrimSpace(sizeHex), 16, 64)
	if err != nil || size < 0 {
		return 0, &domain.ProtocolError{Detail: "malformed chunk size", Err: err}
	}
	return size, nil
}

// ChunkedWriter encodes a chunked-transfer body.
type ChunkedWriter struct {
	w *bufio.Writer
}

func NewChunkedWriter(w *bufio.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

func (c *ChunkedWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if _, err := c.w.WriteString(strconv.FormatInt(int64(len(p)), 16) + "\r\n"); err != nil {
		return 0, err
	}
	n, err := c.w.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := c.w.WriteString("\r\n"); err != nil {
		return n, err
	}
	return n, nil
}

// Close writes the terminating zero-size chunk plus any trailers, and
// flushes the underlying writer.
func (c *ChunkedWriter) Close(trailers Headers) error {
	if _, err := c.w.WriteString("0\r\n"); err != nil {
		return err
	}
	if err := writeHeaders(c.w, trailers); err != nil {
		return err
	}
	return c.w.Flush()
}
