package http1

import (
	"bufio"
	"io"

	"github.com/ramaframework/rama/internal/adapter/stream"
)

// RoundTrip writes req onto conn and reads back one response head plus
// body. It mirrors the server state machine; the extra client-specific bit
// is the Reusable return: a connection that received "Connection: close"
// must not be returned to the pool as reusable.
func RoundTrip(conn stream.Stream, req *Request, maxHeaderBytes int64) (resp *Response, reusable bool, err error) {
	w := bufio.NewWriter(conn)
	if err := WriteRequestHead(w, req.Head); err != nil {
		return nil, false, err
	}
	if req.Body != nil {
		if req.Head.Headers.HasToken("Transfer-Encoding", "chunked") {
			cw := NewChunkedWriter(w)
			if _, err := io.Copy(cw, req.Body); err != nil {
				return nil, false, err
			}
			if err := cw.Close(nil); err != nil {
				return nil, false, err
			}
		} else if _, err := io.Copy(w, req.Body); err != nil {
			return nil, false, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, false, err
	}

	r := bufio.NewReader(conn)
	if maxHeaderBytes == 0 {
		maxHeaderBytes = DefaultMaxHeaderListSize
	}
	head, err := ParseResponseHead(r, maxHeaderBytes)
	if err != nil {
		return nil, false, err
	}

	bodyLen, err := ResponseBodyLength(head.Headers, StatusAllowsBody(head.StatusCode) && req.Head.Method != "HEAD")
	if err != nil {
		return nil, false, err
	}

	return &Response{Head: head, Body: bodyReader(r, bodyLen)},
		KeepAlive(head.Version, head.Headers),
		nil
}
