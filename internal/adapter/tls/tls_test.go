package tls_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	ramatls "github.com/ramaframework/rama/internal/adapter/tls"
	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/core/extensions"
)

func selfSignedCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestAcceptConnectHandshakeNegotiatesALPN(t *testing.T) {
	cert := selfSignedCert(t)
	serverRaw, clientRaw := net.Pipe()

	serverCfg := ramatls.AcceptorConfig{
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		},
	}
	clientCfg := ramatls.ConnectorConfig{
		TLSConfig: &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{"h2"},
		},
		ServerName: "localhost",
	}

	type result struct {
		s   stream.Stream
		err error
	}
	serverDone := make(chan result, 1)
	go func() {
		s, err := ramatls.Accept(context.Background(), stream.NewConn(serverRaw), serverCfg)
		serverDone <- result{s, err}
	}()

	clientStream, err := ramatls.Connect(context.Background(), stream.NewConn(clientRaw), clientCfg)
	if err != nil {
		t.Fatalf("client handshake failed: %v", err)
	}
	res := <-serverDone
	if res.err != nil {
		t.Fatalf("server handshake failed: %v", res.err)
	}

	clientParams, ok := extensions.Get[ramatls.NegotiatedParameters](clientStream.Extensions())
	if !ok {
		t.Fatalf("expected NegotiatedParameters on client stream")
	}
	if clientParams.ALPN != "h2" {
		t.Fatalf("expected ALPN h2, got %q", clientParams.ALPN)
	}

	serverParams, ok := extensions.Get[ramatls.NegotiatedParameters](res.s.Extensions())
	if !ok {
		t.Fatalf("expected NegotiatedParameters on server stream")
	}
	if serverParams.ALPN != "h2" {
		t.Fatalf("expected server ALPN h2, got %q", serverParams.ALPN)
	}

	if got := ramatls.SelectALPN(serverParams.ALPN); got != "h2" {
		t.Fatalf("expected h2 engine selection, got %q", got)
	}
}
