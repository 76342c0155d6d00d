package stream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"autoguard/internal/model"
)

// GRPCClient subscribes to a remote EventService.
type GRPCClient struct {
	logger *slog.Logger
	conn   *grpc.ClientConn
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCClient, error) {
	var creds credentials.TransportCredentials
	if tlsCfg != nil {
		creds = credentials.NewTLS(tlsCfg)
	} else {
		creds = insecure.NewCredentials()
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return &GRPCClient{logger: logger, conn: conn}, nil
}

// Subscribe calls fn for every received event until ctx ends, the server
// closes the stream, or fn returns an error.
func (c *GRPCClient) Subscribe(ctx context.Context, events []model.EventName, fn func(RawEnvelope) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}, SubscribeMethod)
	if err != nil {
		return fmt.Errorf("open subscribe stream: %w", err)
	}
	if err := s.SendMsg(&SubscribeRequest{Events: events}); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}
	if err := s.CloseSend(); err != nil {
		return fmt.Errorf("close subscribe send: %w", err)
	}

	for {
		var env RawEnvelope
		if err := s.RecvMsg(&env); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive event: %w", err)
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
