// Package grpc implements the gRPC transport for voicewrite.
//
// The service is voicewrite.v1.Speaker. Messages are the JSON wire types from
// the message package carried over gRPC with a JSON codec, so clients only
// need a ServiceDesc and no generated stubs.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/voicewrite/internal/dispatch"
	"github.com/nadzzz/voicewrite/internal/message"
	"github.com/nadzzz/voicewrite/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "voicewrite.v1.Speaker"

// Method names, as used in grpc.ClientConn.Invoke.
const (
	MethodSpeak     = "/" + ServiceName + "/Speak"
	MethodSpeakSync = "/" + ServiceName + "/SpeakSync"
	MethodVoices    = "/" + ServiceName + "/Voices"
	MethodHealth    = "/" + ServiceName + "/Health"
)

// Empty is the request type of methods without arguments.
type Empty struct{}

// Codec is the JSON codec used on both ends of the connection.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{
		port: port,
		server: grpc.NewServer(
			grpc.ForceServerCodec(Codec{}),
			grpc.ChainUnaryInterceptor(logUnary),
		),
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to speaker.
func (t *Transport) Listen(ctx context.Context, speaker transport.Speaker) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.serve(ctx, lis, speaker)
}

func (t *Transport) serve(ctx context.Context, lis net.Listener, speaker transport.Speaker) error {
	t.server.RegisterService(&serviceDesc, &service{speaker: speaker})

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	t.server.GracefulStop()
	return nil
}

// speakerServer is the handler type checked by RegisterService.
type speakerServer interface {
	speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error)
	speakSync(ctx context.Context, req *message.SpeakRequest) (*message.SyncResponse, error)
	voices(ctx context.Context, req *Empty) (*message.VoicesResponse, error)
	health(ctx context.Context, req *Empty) (*message.HealthResponse, error)
}

type service struct {
	speaker transport.Speaker
}

func (s *service) speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	res, err := s.speaker.SpeakAsync(requestContext(ctx), *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (s *service) speakSync(ctx context.Context, req *message.SpeakRequest) (*message.SyncResponse, error) {
	res, err := s.speaker.SpeakSync(requestContext(ctx), *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &message.SyncResponse{Status: "played", Size: res.Size, Voice: res.Voice}, nil
}

func (s *service) voices(context.Context, *Empty) (*message.VoicesResponse, error) {
	return &message.VoicesResponse{Voices: s.speaker.Voices(), TTSAvailable: s.speaker.Available()}, nil
}

func (s *service) health(context.Context, *Empty) (*message.HealthResponse, error) {
	return &message.HealthResponse{Status: "ready", TTSAvailable: s.speaker.Available()}, nil
}

// requestContext carries the caller's x-request-id, or a fresh one, into dispatch.
func requestContext(ctx context.Context) context.Context {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
			return dispatch.WithRequestID(ctx, ids[0])
		}
	}
	return dispatch.WithRequestID(ctx, uuid.NewString())
}

func toStatus(err error) error {
	code := codes.Internal
	switch transport.Classify(err) {
	case transport.StatusInvalid:
		code = codes.InvalidArgument
	case transport.StatusUnavailable:
		code = codes.Unavailable
	}
	return status.Error(code, transport.Detail(err))
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "grpc request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func unary[Req, Resp any](method string, call func(speakerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, "invalid json: "+err.Error())
			}
			s := srv.(speakerServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*speakerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Speak", speakerServer.speak),
		unary("SpeakSync", speakerServer.speakSync),
		unary("Voices", speakerServer.voices),
		unary("Health", speakerServer.health),
	},
}
