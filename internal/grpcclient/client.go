// Package grpcclient talks to the local OCR sidecar, a detector+recognizer
// pipeline served over gRPC. Payloads are google.protobuf.Struct so the
// sidecar contract needs no generated stubs:
//
//	Recognize({image: base64 PNG, format: "png", lang}) -> {lines: [{text, confidence, top}]}
package grpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/subtrans/internal/errors"
	"github.com/GriffinCanCode/subtrans/internal/ocr"
	"github.com/GriffinCanCode/subtrans/internal/resilience"
	"github.com/GriffinCanCode/subtrans/internal/trace"
)

// Client is a connection to the OCR sidecar. It implements ocr.Recognizer.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// New creates a sidecar client. The connection is established lazily.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithUnaryInterceptor(trace.UnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "ocr sidecar %s", addr)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Ready reports nil when the sidecar's OCR service is serving.
func (c *Client) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.Unavailable, "ocr sidecar %s", resp.GetStatus())
	}
	return nil
}

// WaitReady polls Ready with backoff while the sidecar loads its models.
func (c *Client) WaitReady(ctx context.Context) error {
	return resilience.Retry(ctx, resilience.SidecarRetryConfig(), func() error {
		return c.Ready(ctx)
	})
}

// Recognize sends img to the sidecar.
func (c *Client) Recognize(ctx context.Context, img image.Image, lang string) ([]ocr.Line, error) {
	ctx, span := trace.StartSpan(ctx, "ocr_recognize")
	defer span.End()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.OCRInvalidImage, "encode frame")
	}
	req, err := structpb.NewStruct(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(buf.Bytes()),
		"format": "png",
		"lang":   lang,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "build ocr request")
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultCallTimeout)
	defer cancel()
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, RecognizeMethod, req, resp); err != nil {
		span.SetAttr("error", err.Error())
		return nil, apperrors.FromGRPCError(err)
	}
	lines, err := decodeLines(resp)
	span.SetAttr("lines", len(lines))
	return lines, err
}

func decodeLines(resp *structpb.Struct) ([]ocr.Line, error) {
	field, ok := resp.GetFields()["lines"]
	if !ok {
		return nil, nil
	}
	list := field.GetListValue()
	if list == nil {
		return nil, apperrors.New(apperrors.OCRFailed, "ocr response: lines is not a list")
	}
	lines := make([]ocr.Line, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		entry := v.GetStructValue()
		if entry == nil {
			return nil, apperrors.Newf(apperrors.OCRFailed, "ocr response: line %d is not an object", i)
		}
		f := entry.GetFields()
		lines = append(lines, ocr.Line{
			Text:       f["text"].GetStringValue(),
			Confidence: f["confidence"].GetNumberValue(),
			Top:        f["top"].GetNumberValue(),
		})
	}
	return lines, nil
}

var _ ocr.Recognizer = (*Client)(nil)

func (c *Client) String() string { return fmt.Sprintf("ocr-sidecar(%s)", c.conn.Target()) }
