package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// PushProcedure is the unary procedure a collector serves.
const PushProcedure = "/jniscope.v1.CollectorService/Push"

// h2cClient speaks HTTP/2 without TLS.
func h2cClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// RemoteSink pushes messages to a collector over connect.
type RemoteSink struct {
	client  *connect.Client[structpb.Struct, emptypb.Empty]
	timeout time.Duration
}

// NewRemoteSink dials baseURL lazily. Plain http:// URLs use h2c.
func NewRemoteSink(baseURL string) *RemoteSink {
	hc := http.DefaultClient
	if strings.HasPrefix(baseURL, "http://") {
		hc = h2cClient()
	}
	return &RemoteSink{
		client:  connect.NewClient[structpb.Struct, emptypb.Empty](hc, strings.TrimSuffix(baseURL, "/")+PushProcedure),
		timeout: 5 * time.Second,
	}
}

func (s *RemoteSink) Write(m *Message) error {
	st, err := m.Struct()
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Method.Name, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.client.CallUnary(ctx, connect.NewRequest(st)); err != nil {
		return fmt.Errorf("push %s: %w", m.Method.Name, err)
	}
	return nil
}

func (s *RemoteSink) Close() error { return nil }

// NewCollectorHandler returns the path and h2c-capable handler of a collector
// that passes every pushed message to fn.
func NewCollectorHandler(fn func(*Message)) (string, http.Handler) {
	handler := connect.NewUnaryHandler(PushProcedure,
		func(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
			if req.Msg == nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("empty message"))
			}
			fn(FromStruct(req.Msg))
			return connect.NewResponse(&emptypb.Empty{}), nil
		},
	)
	mux := http.NewServeMux()
	mux.Handle(PushProcedure, handler)
	return PushProcedure, h2c.NewHandler(mux, &http2.Server{})
}
