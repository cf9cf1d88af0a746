package controller

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/tnqbao/gau-image-service/http/controller"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	submissionCounter, _ = meter.Int64Counter("image.submissions",
		metric.WithDescription("Accepted image submissions"))
	galleryCounter, _ = meter.Int64Counter("image.gallery.requests",
		metric.WithDescription("Gallery pages served, labelled by cache outcome"))
	confirmationCounter, _ = meter.Int64Counter("image.confirmations",
		metric.WithDescription("Images moved from PENDING to CONFIRMED by callback"))
)
