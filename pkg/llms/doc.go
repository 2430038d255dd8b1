// Package llms provides the single-shot "ask a model for the next message"
// primitive shared by the agents, and its provider adapters.
//
// Each subpackage wraps one provider SDK behind the Model interface,
// returns a TraceStep describing the request and response,
// and maps SDK failures to CallError.
package llms
