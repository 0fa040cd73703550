package body_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ramaframework/rama/internal/adapter/body"
	"github.com/ramaframework/rama/internal/core/domain"
)

func TestEmptyYieldsNoFramesAndExactZeroHint(t *testing.T) {
	b := body.Empty()
	_, err := b.Next(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	hint := b.Hint()
	if hint.Lower != 0 || hint.Upper == nil || *hint.Upper != 0 {
		t.Fatalf("got %+v", hint)
	}
}

func TestFullYieldsOneFrameThenEOF(t *testing.T) {
	b := body.Full([]byte("hello"))
	frame, err := b.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame.Data) != "hello" || frame.Kind != body.FrameData {
		t.Fatalf("got %+v", frame)
	}
	if _, err := b.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestStreamChunksUntilEOF(t *testing.T) {
	b := body.Stream(bytes.NewBufferString("streamed data"))
	got, trailers, err := body.ReadAll(context.Background(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "streamed data" {
		t.Fatalf("got %q", got)
	}
	if trailers != nil {
		t.Fatalf("got %+v, want nil trailers", trailers)
	}
	if b.Hint().Upper != nil {
		t.Fatalf("got bounded hint %+v, want unbounded", b.Hint())
	}
}

func TestLimitedFailsOnceMaxBytesExceeded(t *testing.T) {
	b := body.Limited(body.Full([]byte("0123456789")), 4)
	_, err := body.ReadAll(context.Background(), b)
	if err == nil {
		t.Fatalf("expected error")
	}
	var limitErr *domain.FramingLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("got %v (%T), want *domain.FramingLimitError", err, err)
	}
	if limitErr.Limit != 4 || limitErr.Observed != 10 {
		t.Fatalf("got %+v", limitErr)
	}
}

func TestLimitedPassesDataUnderLimit(t *testing.T) {
	b := body.Limited(body.Full([]byte("ab")), 4)
	got, _, err := body.ReadAll(context.Background(), b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "ab" {
		t.Fatalf("got %q", got)
	}
}
