package telemetry

// Span names used for instrumentation.
const (
	// Data access
	SpanFetchEntities = "viewer.fetch_entities"
	SpanFetchLegs     = "viewer.fetch_legs"
	SpanFetchAllLegs  = "viewer.fetch_all_legs"
	SpanFetchStops    = "viewer.fetch_stops"
	SpanFetchOrders   = "viewer.fetch_orders"
	SpanFetchFocus    = "viewer.fetch_focus_order"

	// Rendering
	SpanHandleCommand = "viewer.handle_command"
	SpanRasterize     = "viewer.rasterize"
)
