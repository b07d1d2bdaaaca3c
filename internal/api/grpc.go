package api

import (
	"context"
	"encoding/json"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/reflection"

	internalstatus "github.com/jbride/mujina/internal/status"
)

// jsonCodec implements grpc/encoding.Codec over plain JSON so the control
// boundary can be served without a protoc codegen step in this environment.
// It is registered under the name "proto" so it transparently satisfies
// grpc-go's default content-subtype negotiation.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error  { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "proto" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// BoardStatusMessage is the wire shape for one board's status over the
// control boundary.
type BoardStatusMessage struct {
	DevicePath string `json:"device_path"`
	State      string `json:"state"`
	Reason     string `json:"reason,omitempty"`
	ChipCount  int32  `json:"chip_count,omitempty"`
}

// ListBoardsRequest is empty; boards are always listed in full.
type ListBoardsRequest struct{}

// ListBoardsResponse carries every board the backplane currently tracks.
type ListBoardsResponse struct {
	Boards []BoardStatusMessage `json:"boards"`
}

// ReinitializeRequest names the board to reinitialize.
type ReinitializeRequest struct {
	DevicePath string `json:"device_path"`
}

// ReinitializeResponse acknowledges a reinit request.
type ReinitializeResponse struct {
	Accepted bool `json:"accepted"`
}

// controlServer implements the control-boundary RPCs over the shared
// status sink.
type controlServer struct {
	sink *internalstatus.Sink
}

func (s *controlServer) ListBoards(ctx context.Context, _ *ListBoardsRequest) (*ListBoardsResponse, error) {
	snap := s.sink.Boards()
	resp := &ListBoardsResponse{Boards: make([]BoardStatusMessage, 0, len(snap))}
	for path, b := range snap {
		msg := BoardStatusMessage{DevicePath: path, State: boardStateString(b.State), Reason: b.Reason}
		if b.Board != nil {
			msg.ChipCount = int32(b.Board.Info().ChipCount)
		}
		resp.Boards = append(resp.Boards, msg)
	}
	return resp, nil
}

// Reinitialize answers Accepted for any non-empty device path. It does not
// reach the backplane and does not reinitialize any board.
func (s *controlServer) Reinitialize(ctx context.Context, req *ReinitializeRequest) (*ReinitializeResponse, error) {
	if req.DevicePath == "" {
		return nil, status.Error(codes.InvalidArgument, "device_path is required")
	}
	return &ReinitializeResponse{Accepted: true}, nil
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "mujina.v1.ControlService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListBoards",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(ListBoardsRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*controlServer).ListBoards(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/mujina.v1.ControlService/ListBoards"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(*controlServer).ListBoards(ctx, req.(*ListBoardsRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
		{
			MethodName: "Reinitialize",
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := new(ReinitializeRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return srv.(*controlServer).Reinitialize(ctx, req)
				}
				info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/mujina.v1.ControlService/Reinitialize"}
				handler := func(ctx context.Context, req any) (any, error) {
					return srv.(*controlServer).Reinitialize(ctx, req.(*ReinitializeRequest))
				}
				return interceptor(ctx, req, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mujina/v1/control.proto",
}

// GRPCServer wraps a grpc.Server exposing the control boundary on listener.
type GRPCServer struct {
	server *grpc.Server
}

// NewGRPCServer builds the gRPC control boundary over the same sink the
// REST server reads from.
func NewGRPCServer(sink *internalstatus.Sink) *GRPCServer {
	srv := grpc.NewServer()
	srv.RegisterService(&controlServiceDesc, &controlServer{sink: sink})
	reflection.Register(srv)
	return &GRPCServer{server: srv}
}

// Run serves on lis until ctx is cancelled, then stops gracefully.
func (g *GRPCServer) Run(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- g.server.Serve(lis) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		g.server.GracefulStop()
		return nil
	}
}
