package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/idelchi/meshmark/internal/inbox"
)

// ErrRejected is returned when the server refuses a request as malformed.
var ErrRejected = errors.New("transfer: request rejected")

// DialOptions tunes the client connection.
type DialOptions struct {
	// MaxMsgBytes sets both send and receive limits when non-zero.
	MaxMsgBytes int
}

// Client talks to a Transfer server.
type Client struct {
	cc     *grpc.ClientConn
	client TransferClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// Dial connects to target (host:port) without transport security.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}

	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", target, err)
	}

	return NewClient(cc), nil
}

// NewClient wraps an established connection. Close closes it.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewTransferClient(cc)}
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}

	return c.cc.Close()
}

// Send uploads data under name and returns the content id assigned by the
// server, after checking it matches the id computed locally.
func (c *Client) Send(ctx context.Context, name string, data []byte) (string, error) {
	raw, err := Pack(name, data)
	if err != nil {
		return "", err
	}

	expected, err := inbox.ID(raw)
	if err != nil {
		return "", err
	}

	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Send(ctx, wrapperspb.Bytes(raw))
	if err != nil {
		return "", fmt.Errorf("sending %q: %w", name, mapRPC(err))
	}

	if reply.GetValue() != expected.String() {
		return "", fmt.Errorf("sending %q: server answered %q, expected %q: %w",
			name, reply.GetValue(), expected, inbox.ErrMismatch)
	}

	return reply.GetValue(), nil
}

// Receive downloads the parcel stored under id and returns its name and data.
func (c *Client) Receive(ctx context.Context, id string) (string, []byte, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Receive(ctx, wrapperspb.String(id))
	if err != nil {
		return "", nil, fmt.Errorf("fetching %s: %w", id, mapRPC(err))
	}

	raw := reply.GetValue()

	got, err := inbox.ID(raw)
	if err != nil {
		return "", nil, err
	}

	if got.String() != id {
		return "", nil, fmt.Errorf("fetching %s: %w", id, inbox.ErrMismatch)
	}

	return Unpack(raw)
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, c.Timeout)
}
