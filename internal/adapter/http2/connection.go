package http2

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/atomic"

	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/pkg/pool"
)

// dataFrameBuf is a pooled scratch buffer for copying a response body into
// outbound DATA frames, sized to DefaultMaxFrameSize — one per in-flight
// stream response rather than one per frame written.
type dataFrameBuf struct {
	b [DefaultMaxFrameSize]byte
}

var dataFrameBufPool = pool.NewLitePool(func() *dataFrameBuf { return &dataFrameBuf{} })

// Config bounds one connection's behavior. Zero values fall back to
// DefaultSettings' values.
type Config struct {
	Role                  Peer
	InitialWindowSize     uint32
	MaxConcurrentStreams  uint32
	MaxFrameSize          uint32
	MaxHeaderListSize     uint32
	KeepAliveInterval     time.Duration // 0 disables PING keep-alive
	KeepAliveTimeout      time.Duration
	MaxPendingAcceptReset int // rapid-reset mitigation threshold, 0 means DefaultMaxPendingAcceptReset
}

const DefaultMaxPendingAcceptReset = 100

// streamEntry pairs the state machine with the plumbing needed to deliver
// DATA frames into a Request's Body and to serialize outbound frames for
// that stream's response.
type streamEntry struct {
	fsm        *Stream
	bodyWriter *io.PipeWriter
	sendWindow *Window
	openedAt   time.Time
}

// Connection runs one HTTP/2 connection's control loop: preface and SETTINGS
// exchange, frame demultiplexing into per-stream state, flow control, and
// orderly or error shutdown.
type Connection struct {
	role Peer
	conn stream.Stream
	r    *bufio.Reader

	wMu sync.Mutex
	w   *bufio.Writer

	settingsMu     sync.RWMutex
	localSettings  Settings
	remoteSettings Settings

	streams          *xsync.Map[uint32, *streamEntry]
	nextLocalStream  atomic.Uint32
	highestRemoteID  atomic.Uint32
	lastProcessedID  atomic.Uint32
	goAwaySent       atomic.Bool
	rapidResetEvents atomic.Int64

	connSendWindow *Window
	connRecvWindow *Window

	encoder *Encoder
	decoder *Decoder

	handler Handler
	cfg     Config

	pendingStreamID uint32
	pendingBlock    []byte
}

// Serve runs the connection to completion: exchanges preface/SETTINGS,
// demultiplexes frames, dispatches streams to handler, and returns when the
// connection closes (peer GOAWAY, transport error, or ctx cancellation).
func Serve(ctx context.Context, conn stream.Stream, handler Handler, cfg Config) error {
	if cfg.InitialWindowSize == 0 {
		cfg.InitialWindowSize = DefaultSettings().InitialWindowSize
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.MaxPendingAcceptReset == 0 {
		cfg.MaxPendingAcceptReset = DefaultMaxPendingAcceptReset
	}

	c := &Connection{
		role:           cfg.Role,
		conn:           conn,
		r:              bufio.NewReader(conn),
		w:              bufio.NewWriter(conn),
		localSettings:  DefaultSettings(),
		remoteSettings: DefaultSettings(),
		streams:        xsync.NewMap[uint32, *streamEntry](),
		connSendWindow: newWindow(65535),
		connRecvWindow: newWindow(65535),
		encoder:        NewEncoder(4096),
		decoder:        NewDecoder(4096),
		handler:        handler,
		cfg:            cfg,
	}
	c.localSettings.InitialWindowSize = cfg.InitialWindowSize
	c.localSettings.MaxFrameSize = cfg.MaxFrameSize
	if cfg.MaxConcurrentStreams > 0 {
		c.localSettings.MaxConcurrentStreams = cfg.MaxConcurrentStreams
	}
	if cfg.MaxHeaderListSize > 0 {
		c.localSettings.MaxHeaderListSize = cfg.MaxHeaderListSize
	}
	if cfg.Role == PeerClient {
		c.nextLocalStream.Store(1)
	} else {
		c.nextLocalStream.Store(2)
	}

	if err := c.exchangePreface(); err != nil {
		return err
	}

	if cfg.KeepAliveInterval > 0 {
		kaCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go c.runKeepAlive(kaCtx)
	}

	return c.readLoop(ctx)
}

func (c *Connection) exchangePreface() error {
	if c.role == PeerServer {
		buf := make([]byte, len(Preface))
		if _, err := io.ReadFull(c.r, buf); err != nil {
			return &ConnError{Code: ErrProtocolError, Reason: "failed to read connection preface"}
		}
		if string(buf) != Preface {
			return &ConnError{Code: ErrProtocolError, Reason: "malformed connection preface"}
		}
	} else {
		if _, err := io.WriteString(c.w, Preface); err != nil {
			return err
		}
	}

	settingsPairs := []SettingPair{
		{ID: SettingInitialWindowSize, Value: c.localSettings.InitialWindowSize},
		{ID: SettingMaxFrameSize, Value: c.localSettings.MaxFrameSize},
	}
	if err := c.writeFrame(FrameSettings, 0, 0, EncodeSettingsFrame(settingsPairs)); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *Connection) writeFrame(t FrameType, flags uint8, streamID uint32, payload []byte) error {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	return WriteFrame(c.w, t, flags, streamID, payload)
}

func (c *Connection) flush() error {
	c.wMu.Lock()
	defer c.wMu.Unlock()
	return c.w.Flush()
}

func (c *Connection) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var data [8]byte
			_ = c.writeFrame(FramePing, 0, 0, data[:])
			_ = c.flush()
		}
	}
}

func (c *Connection) readLoop(ctx context.Context) error {
	for {
		maxFrame := c.localSettings.MaxFrameSize
		f, err := ReadFrame(c.r, maxFrame)
		if err != nil {
			return err
		}

		if err := c.dispatch(ctx, f); err != nil {
			var connErr *ConnError
			if asConnError(err, &connErr) {
				_ = c.sendGoAway(connErr.Code, []byte(connErr.Reason))
				return connErr
			}
			var streamErr *StreamError
			if asStreamError(err, &streamErr) {
				if entry, ok := c.streams.Load(streamErr.StreamID); ok {
					entry.fsm.reset(streamErr.Code)
				}
				_ = c.writeFrame(FrameRSTStream, 0, streamErr.StreamID, EncodeRSTStreamFrame(streamErr.Code))
				_ = c.flush()
				continue
			}
			return err
		}
	}
}

func asConnError(err error, target **ConnError) bool {
	if ce, ok := err.(*ConnError); ok {
		*target = ce
		return true
	}
	return false
}

func asStreamError(err error, target **StreamError) bool {
	if se, ok := err.(*StreamError); ok {
		*target = se
		return true
	}
	return false
}

func (c *Connection) dispatch(ctx context.Context, f Frame) error {
	switch f.Type {
	case FrameSettings:
		return c.handleSettings(f)
	case FrameWindowUpdate:
		return c.handleWindowUpdate(f)
	case FramePing:
		return c.handlePing(f)
	case FrameGoAway:
		return c.handleGoAway(f)
	case FrameHeaders:
		return c.handleHeaders(ctx, f)
	case FrameContinuation:
		return c.handleContinuation(ctx, f)
	case FrameData:
		return c.handleData(f)
	case FrameRSTStream:
		return c.handleRSTStream(f)
	case FramePriority:
		_, err := ParsePriorityFrame(f) // accepted and ignored per RFC 9113
		return err
	case FramePushPromise:
		return c.handlePushPromise(f)
	default:
		// unknown frame types are ignored per RFC 7540 §4.1
		return nil
	}
}

func (c *Connection) handleSettings(f Frame) error {
	if f.hasFlag(FlagAck) {
		return nil // nothing pending to reconcile: ACKs carry no payload obligations here
	}
	pairs, err := ParseSettingsFrame(f.Payload)
	if err != nil {
		return err
	}

	c.settingsMu.Lock()
	oldInitialWindow := c.remoteSettings.InitialWindowSize
	for _, p := range pairs {
		if err := c.remoteSettings.Apply(p); err != nil {
			c.settingsMu.Unlock()
			return err
		}
	}
	newInitialWindow := c.remoteSettings.InitialWindowSize
	c.settingsMu.Unlock()

	if delta := int64(newInitialWindow) - int64(oldInitialWindow); delta != 0 {
		// Every open stream's send window shifts by the same signed delta,
		// which may push it negative until the peer sends WINDOW_UPDATE.
		c.streams.Range(func(id uint32, e *streamEntry) bool {
			if e.sendWindow != nil {
				e.sendWindow.Increase(delta)
			}
			return true
		})
	}

	if err := c.writeFrame(FrameSettings, FlagAck, 0, nil); err != nil {
		return err
	}
	return c.flush()
}

func (c *Connection) handleWindowUpdate(f Frame) error {
	wu, err := ParseWindowUpdateFrame(f)
	if err != nil {
		return err
	}
	if f.StreamID == 0 {
		c.connSendWindow.Increase(int64(wu.Increment))
		return nil
	}
	entry, ok := c.streams.Load(f.StreamID)
	if !ok {
		return nil // WINDOW_UPDATE for a closed/unknown stream is ignored
	}
	if entry.sendWindow != nil {
		entry.sendWindow.Increase(int64(wu.Increment))
	}
	return nil
}

func (c *Connection) handlePing(f Frame) error {
	pf, err := ParsePingFrame(f)
	if err != nil {
		return err
	}
	if pf.Ack {
		return nil
	}
	if err := c.writeFrame(FramePing, FlagAck, 0, pf.Data[:]); err != nil {
		return err
	}
	return c.flush()
}

func (c *Connection) handleGoAway(f Frame) error {
	ga, err := ParseGoAwayFrame(f)
	if err != nil {
		return err
	}
	return fmt.Errorf("http2: peer sent GOAWAY(%s) after stream %d", ga.ErrorCode, ga.LastStreamID)
}

func (c *Connection) handleRSTStream(f Frame) error {
	rst, err := ParseRSTStreamFrame(f)
	if err != nil {
		return err
	}
	entry, ok := c.streams.Load(f.StreamID)
	if !ok {
		return nil
	}
	entry.fsm.reset(rst.ErrorCode)

	// Rapid-reset mitigation: a stream reset by the peer within a handful of
	// milliseconds of being opened, before any response went out, is the
	// signature of the HTTP/2 rapid-reset attack class.
	if time.Since(entry.openedAt) < 50*time.Millisecond {
		if c.rapidResetEvents.Add(1) > int64(c.cfg.MaxPendingAcceptReset) {
			return &ConnError{Code: ErrEnhanceYourCalm, Reason: "too many rapidly reset streams"}
		}
	}
	return nil
}

func (c *Connection) handlePushPromise(f Frame) error {
	if c.role == PeerClient {
		return nil // acceptance path; a full client implementation decodes and surfaces pushed resources
	}
	return &ConnError{Code: ErrProtocolError, Reason: "server must not receive PUSH_PROMISE"}
}

func (c *Connection) handleHeaders(ctx context.Context, f Frame) error {
	hf, err := ParseHeadersFrame(f)
	if err != nil {
		return err
	}

	if c.role.ownsID(f.StreamID) {
		return &ConnError{Code: ErrProtocolError, Reason: "HEADERS stream ID parity violates peer role"}
	}

	if c.goAwaySent.Load() && f.StreamID > c.lastProcessedID.Load() {
		_ = c.writeFrame(FrameRSTStream, 0, f.StreamID, EncodeRSTStreamFrame(ErrRefusedStream))
		_ = c.flush()
		return nil
	}

	if f.StreamID > c.highestRemoteID.Load() {
		c.highestRemoteID.Store(f.StreamID)
	}

	entry := &streamEntry{
		fsm:        newStream(f.StreamID, int32(c.localSettings.InitialWindowSize), int32(c.remoteSettings.InitialWindowSize)),
		sendWindow: newWindow(int32(c.remoteSettings.InitialWindowSize)),
		openedAt:   time.Now(),
	}
	if err := entry.fsm.transition(eventRecvHeaders); err != nil {
		return err
	}
	c.streams.Store(f.StreamID, entry)

	if !hf.EndHeaders {
		c.pendingStreamID = f.StreamID
		c.pendingBlock = append([]byte{}, hf.HeaderBlock...)
		return nil
	}

	return c.finishHeaders(ctx, entry, hf.HeaderBlock, hf.EndStream)
}

func (c *Connection) handleContinuation(ctx context.Context, f Frame) error {
	if c.pendingStreamID == 0 || f.StreamID != c.pendingStreamID {
		return &ConnError{Code: ErrProtocolError, Reason: "CONTINUATION without a preceding HEADERS on this stream"}
	}
	cont := ParseContinuationFrame(f)
	c.pendingBlock = append(c.pendingBlock, cont.HeaderBlock...)
	if !cont.EndHeaders {
		return nil
	}

	entry, _ := c.streams.Load(c.pendingStreamID)
	block := c.pendingBlock
	c.pendingStreamID = 0
	c.pendingBlock = nil
	return c.finishHeaders(ctx, entry, block, false)
}

func (c *Connection) finishHeaders(ctx context.Context, entry *streamEntry, block []byte, endStream bool) error {
	fields, err := c.decoder.DecodeHeaderList(block)
	if err != nil {
		return err
	}
	order, pseudo, regular, err := SplitPseudoHeaders(fields, requestPseudoHeaders)
	if err != nil {
		return &StreamError{StreamID: entry.fsm.ID, Code: ErrProtocolError, Reason: err.Error()}
	}
	entry.fsm.PseudoHeaderOrder = order

	pr, pw := io.Pipe()
	entry.bodyWriter = pw
	req := &Request{
		Method:            pseudo[":method"],
		Scheme:            pseudo[":scheme"],
		Authority:         pseudo[":authority"],
		Path:              pseudo[":path"],
		Protocol:          pseudo[":protocol"],
		PseudoHeaderOrder: order,
		Headers:           regular,
		Body:              pr,
		StreamID:          entry.fsm.ID,
	}

	if endStream {
		if err := entry.fsm.transition(eventRecvEndStream); err != nil {
			return err
		}
		_ = pw.Close()
	}

	go c.serveStream(ctx, entry, req)
	return nil
}

func (c *Connection) handleData(f Frame) error {
	df, err := ParseDataFrame(f)
	if err != nil {
		return err
	}
	entry, ok := c.streams.Load(f.StreamID)
	if !ok || entry.bodyWriter == nil {
		return &StreamError{StreamID: f.StreamID, Code: ErrStreamClosed, Reason: "DATA for unknown or not-yet-headered stream"}
	}

	if _, err := entry.bodyWriter.Write(df.Data); err != nil {
		return nil // reader side went away; peer will see this on the next frame check
	}

	// Replenish both windows immediately, trading a WINDOW_UPDATE per DATA
	// frame for never applying receive-side backpressure. A more elaborate
	// engine could batch these to cut frame overhead under sustained
	// throughput, at the cost of tracking the window's actual level.
	if len(df.Data) > 0 {
		_ = c.writeFrame(FrameWindowUpdate, 0, 0, EncodeWindowUpdateFrame(uint32(len(df.Data))))
		_ = c.writeFrame(FrameWindowUpdate, 0, f.StreamID, EncodeWindowUpdateFrame(uint32(len(df.Data))))
		_ = c.flush()
	}

	if df.EndStream {
		if err := entry.fsm.transition(eventRecvEndStream); err != nil {
			return err
		}
		_ = entry.bodyWriter.Close()
	}
	return nil
}

// serveStream runs handler for one request and writes its response as
// HEADERS (+ CONTINUATION if needed) followed by DATA frames, respecting
// flow control on both connection and stream windows.
func (c *Connection) serveStream(ctx context.Context, entry *streamEntry, req *Request) {
	resp, err := c.handler.Serve(ctx, req)
	if err != nil || resp == nil {
		_ = c.writeFrame(FrameRSTStream, 0, entry.fsm.ID, EncodeRSTStreamFrame(ErrInternalError))
		_ = c.flush()
		entry.fsm.reset(ErrInternalError)
		return
	}

	headerFields := append([]HeaderField{{Name: ":status", Value: statusText(resp.Status)}}, resp.Headers...)
	block := c.encoder.EncodeHeaderList(headerFields)

	endStream := resp.Body == nil && len(resp.Trailers) == 0
	flags := FlagEndHeaders
	if endStream {
		flags |= FlagEndStream
	}
	if err := c.writeFrame(FrameHeaders, flags, entry.fsm.ID, block); err != nil {
		return
	}
	if err := entry.fsm.transition(eventSendHeaders); err != nil {
		return
	}
	if endStream {
		_ = entry.fsm.transition(eventSendEndStream)
		_ = c.flush()
		return
	}

	if resp.Body != nil {
		bufHolder := dataFrameBufPool.Get()
		defer dataFrameBufPool.Put(bufHolder)
		buf := bufHolder.b[:]
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				c.connSendWindow.Consume(int64(n))
				entry.sendWindow.Consume(int64(n))
				_ = c.writeFrame(FrameData, 0, entry.fsm.ID, buf[:n])
				_ = c.flush()
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				_ = c.writeFrame(FrameRSTStream, 0, entry.fsm.ID, EncodeRSTStreamFrame(ErrInternalError))
				_ = c.flush()
				entry.fsm.reset(ErrInternalError)
				return
			}
		}
	}

	if len(resp.Trailers) > 0 {
		trailerBlock := c.encoder.EncodeHeaderList(resp.Trailers)
		_ = c.writeFrame(FrameHeaders, FlagEndHeaders|FlagEndStream, entry.fsm.ID, trailerBlock)
	} else {
		_ = c.writeFrame(FrameData, FlagEndStream, entry.fsm.ID, nil)
	}
	_ = entry.fsm.transition(eventSendEndStream)
	_ = c.flush()
}

// GoAway emits an orderly-shutdown GOAWAY naming the highest stream this
// connection will still finish processing.
func (c *Connection) GoAway(code ErrorCode) error {
	return c.sendGoAway(code, nil)
}

func (c *Connection) sendGoAway(code ErrorCode, debug []byte) error {
	if !c.goAwaySent.CompareAndSwap(false, true) {
		return nil
	}
	last := c.highestRemoteID.Load()
	c.lastProcessedID.Store(last)
	if err := c.writeFrame(FrameGoAway, 0, 0, EncodeGoAwayFrame(last, code, debug)); err != nil {
		return err
	}
	return c.flush()
}

func statusText(code int) string {
	return fmt.Sprintf("%d", code)
}
