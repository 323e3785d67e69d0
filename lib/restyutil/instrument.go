package restyutil

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

type instrumentCtx struct {
	output    InstrumentOutput
	tracer    trace.Tracer
	idcounter *uint64
}

// InstrumentClient starts a span for every request made by the client and,
// when debug logging is enabled and `output` is not nil, writes the full
// request/response pair to `output`.
//
// `tracer` can be nil, it will default to a library name of "resty"
func InstrumentClient(client *resty.Client, tracer trace.Tracer, output InstrumentOutput) {
	if tracer == nil {
		tracer = otel.Tracer("resty")
	}

	var idcounter uint64
	i := instrumentCtx{output: output, tracer: tracer, idcounter: &idcounter}
	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type ctxKeyType int

const (
	messageIdKey ctxKeyType = iota
	spanKey
)

func (i instrumentCtx) dumping(ctx context.Context) bool {
	return i.output != nil && slog.Default().Enabled(ctx, slog.LevelDebug)
}

func (i instrumentCtx) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, span := i.tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
	ctx = context.WithValue(ctx, spanKey, span)

	if i.dumping(ctx) {
		messageId := strconv.FormatUint(atomic.AddUint64(i.idcounter, 1), 10)
		ctx = context.WithValue(ctx, messageIdKey, messageId)
	}

	req.SetContext(ctx)
	return nil
}

func requestAttributes(req *resty.Request) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
	}
}

func (i instrumentCtx) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	span, ok := ctx.Value(spanKey).(trace.Span)
	if ok {
		defer span.End()
		span.SetAttributes(requestAttributes(res.Request)...)
		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
	}

	messageId, ok := ctx.Value(messageIdKey).(string)
	if ok && i.dumping(ctx) {
		i.output.Write(messageId, formatHttpMessage(res))
		slog.DebugContext(
			ctx, "request succeeded",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"message_id", messageId,
		)
	}
	return nil
}

// onError also runs when a hook registered before this one failed, then the
// context still carries the caller's span which must be left alone.
func (i instrumentCtx) onError(req *resty.Request, err error) {
	ctx := req.Context()
	span, ok := ctx.Value(spanKey).(trace.Span)
	if ok {
		defer span.End()
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		span.SetAttributes(requestAttributes(req)...)
	}

	slog.ErrorContext(
		ctx, "request failed",
		"method", req.Method,
		"url", req.URL,
		"err", err,
	)
}
