package llms

// TraceStep describes one provider call for observability
type TraceStep struct {
	Name     string         `json:"name" yaml:"name"`
	Request  *TraceRequest  `json:"request,omitempty" yaml:"request,omitempty"`
	Response *TraceResponse `json:"response,omitempty" yaml:"response,omitempty"`
}

// TraceRequest is the request part of the trace step
type TraceRequest struct {
	Method  string `json:"method" yaml:"method"`
	URL     string `json:"url" yaml:"url"`
	Payload any    `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// TraceResponse is the response part of the trace step
type TraceResponse struct {
	Status int `json:"status" yaml:"status"`
	Body   any `json:"body,omitempty" yaml:"body,omitempty"`
}

// NewTraceStep returns trace step for SDK based call
func NewTraceStep(name, url string, payload any) *TraceStep {
	return &TraceStep{
		Name: name,
		Request: &TraceRequest{
			Method:  "SDK",
			URL:     url,
			Payload: payload,
		},
	}
}

// WithResponse sets the response part and returns the step
func (s *TraceStep) WithResponse(status int, body any) *TraceStep {
	if s != nil {
		s.Response = &TraceResponse{Status: status, Body: body}
	}
	return s
}
