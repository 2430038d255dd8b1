package multiagent

import (
	"github.com/effective-security/mcpagent/encoding"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/x/values"
	"github.com/tidwall/gjson"
)

// Plan is the orchestrator output
type Plan struct {
	Goal          string `json:"goal" yaml:"goal"`
	NeedsTools    bool   `json:"needs_tools" yaml:"needs_tools"`
	ResearchFocus string `json:"research_focus" yaml:"research_focus"`
	AnalysisFocus string `json:"analysis_focus" yaml:"analysis_focus"`
	FinalStyle    string `json:"final_style" yaml:"final_style"`
}

// ParsePlan returns the plan from the orchestrator output.
// Missing or invalid fields are defaulted, the research focus
// falls back to the user prompt.
func ParsePlan(text, prompt string) *Plan {
	p := &Plan{}
	if obj, ok := llmutils.ExtractJSONObject(text); ok {
		js := gjson.Parse(llmutils.ToJSON(obj))
		p.Goal = stringOf(js.Get("goal"))
		p.NeedsTools = js.Get("needs_tools").Bool()
		p.ResearchFocus = stringOf(js.Get("research_focus"))
		p.AnalysisFocus = stringOf(js.Get("analysis_focus"))
		p.FinalStyle = stringOf(js.Get("final_style"))
	}
	p.ResearchFocus = values.StringsCoalesce(p.ResearchFocus, prompt)
	p.AnalysisFocus = values.StringsCoalesce(p.AnalysisFocus, prompts.DefaultAnalysisFocus)
	p.FinalStyle = values.StringsCoalesce(p.FinalStyle, prompts.DefaultFinalStyle)
	return p
}

// stringOf returns the text of the value, false and null are empty
func stringOf(r gjson.Result) string {
	if r.Type == gjson.False || r.Type == gjson.Null {
		return ""
	}
	if r.Type == gjson.Number && r.Num == 0 {
		return ""
	}
	return r.String()
}

// Critique is the reviewer output
type Critique struct {
	Strengths       []string `json:"strengths,omitempty" yaml:"strengths,omitempty" jsonschema:"description=What the research output gets right"`
	Risks           []string `json:"risks,omitempty" yaml:"risks,omitempty" jsonschema:"description=Accuracy risks and gaps"`
	Fixes           []string `json:"fixes,omitempty" yaml:"fixes,omitempty" jsonschema:"description=Suggested fixes"`
	ApprovedSummary string   `json:"approved_summary,omitempty" yaml:"approved_summary,omitempty" jsonschema:"description=Summary approved for the final answer"`
}

// IsEmpty returns true if the critique has no content
func (c *Critique) IsEmpty() bool {
	return c == nil || (len(c.Strengths) == 0 && len(c.Risks) == 0 && len(c.Fixes) == 0 && c.ApprovedSummary == "")
}

// ParseCritique decodes the reviewer output.
// A failed decode returns an empty critique and false.
func ParseCritique(text string) (*Critique, bool) {
	parser, err := encoding.NewTypedOutputParser(Critique{}, encoding.ModeJSON)
	if err != nil {
		return &Critique{}, false
	}
	c, err := parser.Parse(text)
	if err != nil || c.IsEmpty() {
		return &Critique{}, false
	}
	return c, true
}

// ReviewerNotes returns the notes handed to the finalizer:
// the decoded critique, or the raw reviewer output when it could not be decoded
func ReviewerNotes(text string) string {
	if c, ok := ParseCritique(text); ok {
		return llmutils.ToJSON(c)
	}
	return text
}
