package upload

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/imrenagi/go-upload-progress/upload"

var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName)

	filesCounter, _ = meter.Int64Counter("upload.files",
		metric.WithDescription("Number of file parts handled, by status"))
	bytesCounter, _ = meter.Int64Counter("upload.bytes",
		metric.WithDescription("Number of bytes persisted"),
		metric.WithUnit("By"))
	notificationsCounter, _ = meter.Int64Counter("upload.notifications",
		metric.WithDescription("Number of progress notifications, by result"))
)
