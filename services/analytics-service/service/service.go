// Package service exposes link statistics over gRPC. Messages are protobuf
// well-known types, so no generated code is needed on either side.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"shortlink/pkg/apperr"
	urlsvc "shortlink/services/url-service/service"
)

const ServiceName = "shortlink.analytics.v1.Analytics"

const (
	getStatisticsMethod = "/" + ServiceName + "/GetStatistics"
	listURLsMethod      = "/" + ServiceName + "/ListURLs"
)

type AnalyticsServer interface {
	GetStatistics(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
	ListURLs(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// Statistics is the part of the shortener the server reads from.
type Statistics interface {
	Stats(ctx context.Context, code string) (*urlsvc.StatsView, error)
	List(ctx context.Context) ([]urlsvc.URLView, error)
}

type Server struct {
	stats  Statistics
	logger *slog.Logger
}

func NewServer(stats Statistics, logger *slog.Logger) *Server {
	return &Server{stats: stats, logger: logger}
}

func (s *Server) GetStatistics(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	code := in.GetValue()
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "shortcode is required")
	}

	view, err := s.stats.Stats(ctx, code)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(view)
}

func (s *Server) ListURLs(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	views, err := s.stats.List(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(map[string]any{"urls": views})
}

func (s *Server) toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, apperr.ErrStoreUnavailable):
		code = codes.Unavailable
	case errors.Is(err, apperr.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, apperr.ErrShortcodeTaken), errors.Is(err, apperr.ErrDuplicateKey):
		code = codes.AlreadyExists
	case errors.Is(err, apperr.ErrGone):
		code = codes.FailedPrecondition
	default:
		code = codes.Internal
	}

	if code == codes.Unavailable || code == codes.Internal {
		s.logger.Error("statistics request failed", "error", err)
	}
	return status.Error(code, apperr.PublicMessage(err))
}

// toStruct converts v through its JSON form, so gRPC clients see the same
// document as HTTP clients.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func Register(r grpc.ServiceRegistrar, srv AnalyticsServer) {
	r.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatistics", Handler: getStatisticsHandler},
		{MethodName: "ListURLs", Handler: listURLsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shortlink/analytics/v1/analytics.proto",
}

func getStatisticsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyticsServer).GetStatistics(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatisticsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyticsServer).GetStatistics(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listURLsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyticsServer).ListURLs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listURLsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyticsServer).ListURLs(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// UnaryLogger logs every call with its status code and latency.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"latency", time.Since(start),
		)
		return resp, err
	}
}

// Client calls the Analytics service over any gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetStatistics(ctx context.Context, code string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatisticsMethod, wrapperspb.String(code), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListURLs(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listURLsMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
