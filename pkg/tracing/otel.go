// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer
func InitTracer(config OTelConfig) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartSubmitSpan 开始文档提交校验 span
func StartSubmitSpan(ctx context.Context, documentHash, organizationID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("docverify")
	return tracer.Start(ctx, "verification.submit",
		trace.WithAttributes(
			attribute.String("document.hash", documentHash),
			attribute.String("organization.id", organizationID),
		),
	)
}

// StartEventSpan 开始账本事件处理 span
func StartEventSpan(ctx context.Context, source, eventName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("docverify")
	return tracer.Start(ctx, "eventsync.dispatch",
		trace.WithAttributes(
			attribute.String("event.source", source),
			attribute.String("event.name", eventName),
		),
	)
}
