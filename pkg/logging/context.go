package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	EventIDKey     = "event_id"
	ProjectIDKey   = "project_id"
	RequestIDKey   = "request_id"
	ServiceNameKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithEventID(ctx context.Context, eventID int64) context.Context {
	return context.WithValue(ctx, EventIDKey, eventID)
}

func WithProjectID(ctx context.Context, projectID int64) context.Context {
	return context.WithValue(ctx, ProjectIDKey, projectID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func GetEventID(ctx context.Context) int64 {
	if eventID, ok := ctx.Value(EventIDKey).(int64); ok {
		return eventID
	}
	return 0
}

func GetProjectID(ctx context.Context) int64 {
	if projectID, ok := ctx.Value(ProjectIDKey).(int64); ok {
		return projectID
	}
	return 0
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}

	if eventID := GetEventID(ctx); eventID != 0 {
		fields = append(fields, "event_id", eventID)
	}

	if projectID := GetProjectID(ctx); projectID != 0 {
		fields = append(fields, "project_id", projectID)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
