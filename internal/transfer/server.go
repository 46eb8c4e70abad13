// Package transfer moves watermarked meshes between hosts over gRPC.
//
// A sender packs a file into a CBOR parcel (zstd-compressed body) and
// uploads it; the server stores the parcel in its content-addressed inbox
// and replies with the content id, which the recipient uses to fetch it.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/idelchi/meshmark/internal/inbox"
)

// Server exposes an inbox over the Transfer service.
type Server struct {
	UnimplementedTransferServer

	Store  *inbox.Store
	Logger *slog.Logger
}

// Send stores a parcel and returns its content id.
func (s *Server) Send(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing inbox")
	}

	raw := in.GetValue()

	name, _, err := Unpack(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.Store.Put(raw)
	if err != nil {
		return nil, mapErr(err)
	}

	s.logger().InfoContext(ctx, "received parcel",
		slog.String("name", name),
		slog.String("id", id),
		slog.Int("bytes", len(raw)),
	)

	return wrapperspb.String(id), nil
}

// Receive returns the parcel stored under the requested content id.
func (s *Server) Receive(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing inbox")
	}

	raw, err := s.Store.Get(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}

	s.logger().DebugContext(ctx, "served parcel", slog.String("id", in.GetValue()))

	return wrapperspb.Bytes(raw), nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return s.Logger
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, inbox.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, inbox.ErrInvalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, inbox.ErrMismatch), errors.Is(err, inbox.ErrImmutable):
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// mapRPC turns a status error back into the inbox sentinel it came from.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return inbox.ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.DataLoss:
		return inbox.ErrMismatch
	default:
		return err
	}
}
