package postgres

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// StartRepositorySpan starts a tracing span for a repository operation.
// Returns nil when no Sentry hub is attached to the context; the
// Finish/Set helpers tolerate nil spans so call sites stay unconditional.
func StartRepositorySpan(ctx context.Context, entity, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}
	span := sentry.StartSpan(ctx, "db."+entity+"."+operation)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span
}

// FinishSpan finishes the span if one was started
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError marks the span as failed
func SetSpanError(span *sentry.Span, err error) {
	if span != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("error", err.Error())
	}
}

// SetSpanSuccess marks the span as successful
func SetSpanSuccess(span *sentry.Span) {
	if span != nil {
		span.Status = sentry.SpanStatusOK
	}
}
