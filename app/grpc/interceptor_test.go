package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "grpc-abc"))
	if got := requestIDFromMetadata(ctx); got != "grpc-abc" {
		t.Fatalf("expected grpc-abc, got %q", got)
	}
}

func TestRequestIDInterceptorGeneratesMissingHeader(t *testing.T) {
	interceptor := RequestIDInterceptor()

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		if got := RequestIDFromContext(ctx); len(got) != 36 {
			t.Fatalf("expected generated uuid request id, got %q", got)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDInterceptorUsesIncomingHeader(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "grpc-fixed"))
	interceptor := RequestIDInterceptor()

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		if got := RequestIDFromContext(ctx); got != "grpc-fixed" {
			t.Fatalf("expected grpc-fixed, got %q", got)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestIDReturnedInResponseHeader(t *testing.T) {
	client := dialTestServer(t, newGRPCTestService(t))

	var header metadata.MD
	if _, err := client.CheckStatus(context.Background(), "unknown-ref", grpc.Header(&header)); err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	ids := header.Get(requestIDHeader)
	if len(ids) != 1 || len(ids[0]) != 36 {
		t.Fatalf("expected one generated request id in the response header, got %v", ids)
	}

	var second metadata.MD
	if _, err := client.CheckStatus(context.Background(), "unknown-ref", grpc.Header(&second)); err != nil {
		t.Fatalf("check status failed: %v", err)
	}
	if got := second.Get(requestIDHeader); len(got) != 1 || got[0] == ids[0] {
		t.Fatalf("expected a fresh request id per call, got %v after %v", got, ids)
	}
}

func TestRequestIDEchoedFromOutgoingMetadata(t *testing.T) {
	client := dialTestServer(t, newGRPCTestService(t))

	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDHeader, "portal-req-42")
	var header metadata.MD
	if _, err := client.HasEntitlement(ctx, "u1", "webdev", grpc.Header(&header)); err != nil {
		t.Fatalf("has entitlement failed: %v", err)
	}
	if got := header.Get(requestIDHeader); len(got) != 1 || got[0] != "portal-req-42" {
		t.Fatalf("expected caller request id to be echoed, got %v", got)
	}
}

func TestRecoveryInterceptorConvertsPanicToInternal(t *testing.T) {
	interceptor := RecoveryInterceptor()
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: checkStatusMethod}, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", err)
	}
}

func TestLoggingInterceptorPassThrough(t *testing.T) {
	interceptor := LoggingInterceptor()
	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: hasEntitlementMethod}, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected response: %v", resp)
	}
}
