package telemetry

// Attribute names for conversion and transport spans
const (
	AttrConversionSource   = "base64.source"       // Caller surface (mcp, web, cli, interactive)
	AttrConversionMode     = "base64.mode"         // encode or decode
	AttrConversionInputLen = "base64.input.length" // Input length in bytes
	AttrConversionOutcome  = "base64.outcome"      // success or failure
	AttrConversionCategory = "base64.category"     // Failure category
	AttrConversionAdvisory = "base64.advisory"     // Advisory raised on success

	AttrMCPToolName  = "mcp.tool.name"
	AttrMCPTransport = "mcp.transport"
	AttrRequestID    = "request.id"
)

// Span names
const (
	SpanNameConvert     = "base64.convert"
	SpanNameToolExecute = "mcp.tool.execute"
)
