package multiagent

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/toolset"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "multiagent")

// Pipeline roles
const (
	AgentOrchestrator = "orchestrator"
	AgentResearcher   = "researcher"
	AgentReviewer     = "reviewer"
	AgentFinalizer    = "finalizer"
)

// MissingPromptResponse is returned when the conversation has no user prompt
const MissingPromptResponse = "Multi-agent mode requires a user prompt."

// Agents lists the roles in the order of execution
var Agents = []string{AgentOrchestrator, AgentResearcher, AgentReviewer, AgentFinalizer}

var stageFailures = map[string]string{
	AgentOrchestrator: "Orchestrator agent failed.",
	AgentResearcher:   "Research agent failed.",
	AgentReviewer:     "Reviewer agent failed.",
	AgentFinalizer:    "Finalizer agent failed.",
}

// Pipeline runs the multi-agent turn
type Pipeline struct {
	model      llms.Model
	researcher *assistants.Agent
	cfg        *Config
}

// New returns pipeline for the model, the toolset serves the researcher
func New(model llms.Model, ts *toolset.Toolset, opts ...Option) *Pipeline {
	cfg := NewConfig(opts...)
	researcherOpts := append([]assistants.Option{
		assistants.WithCallback(cfg.Callback),
		assistants.WithCallOptions(cfg.CallOptions...),
	}, cfg.ResearcherOptions...)
	researcherOpts = append(researcherOpts, assistants.WithName(AgentResearcher))

	return &Pipeline{
		model:      model,
		researcher: assistants.New(model, ts, researcherOpts...),
		cfg:        cfg,
	}
}

// Name returns the pipeline name
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Config returns the pipeline config
func (p *Pipeline) Config() Config {
	return *p.cfg
}

// Researcher returns the agent of the research stage
func (p *Pipeline) Researcher() *assistants.Agent {
	return p.researcher
}

type run struct {
	*Pipeline
	prompt string
	trace  []*chatmodel.TraceEntry
}

// Run executes the stages in order over the conversation.
// The first failing stage ends the turn with its error and the trace so far,
// the failed role is reported in MultiAgent.FailedAgent.
func (p *Pipeline) Run(ctx context.Context, messages []llms.Message, toolsEnabled bool) *chatmodel.TurnResult {
	started := time.Now()
	name := p.Name()
	cb := p.cfg.Callback

	prompt := strings.TrimSpace(llms.LatestUserPrompt(messages))
	cb.OnAgentStart(ctx, name, prompt)

	var res *chatmodel.TurnResult
	if prompt == "" {
		res = &chatmodel.TurnResult{
			StatusCode: http.StatusBadRequest,
			Error:      MissingPromptResponse,
			AgentTrace: []*chatmodel.TraceEntry{},
			MultiAgent: &chatmodel.MultiAgentInfo{Enabled: true, Implemented: true},
		}
	} else {
		r := &run{
			Pipeline: p,
			prompt:   prompt,
			trace:    []*chatmodel.TraceEntry{},
		}
		res = r.execute(ctx, messages, toolsEnabled)
	}

	metricskey.PerfAssistantCall.MeasureSince(started, name)
	if res.Failed() {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, name)
		cb.OnAgentError(ctx, name, res)
	} else {
		metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, name)
		cb.OnAgentEnd(ctx, name, res)
	}
	return res
}

func (r *run) execute(ctx context.Context, messages []llms.Message, toolsEnabled bool) *chatmodel.TurnResult {
	r.trace = append(r.trace, &chatmodel.TraceEntry{
		Kind:         chatmodel.KindMultiAgent,
		Event:        chatmodel.EventPipelineStart,
		Agent:        AgentOrchestrator,
		Agents:       Agents,
		ToolsEnabled: chatmodel.Bool(toolsEnabled),
	})

	// orchestrator
	planText, ce := r.stage(ctx, AgentOrchestrator,
		prompts.Orchestrator,
		r.prompt,
		llmutils.ConversationSummary(messages, ContextTurns))
	if ce != nil {
		return r.fail(ctx, AgentOrchestrator, ce)
	}
	plan := ParsePlan(planText, r.prompt)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "plan",
		"goal", slices.StringUpto(plan.Goal, 128),
		"needs_tools", plan.NeedsTools,
	)

	r.handoff(AgentOrchestrator, AgentResearcher, func(e *chatmodel.TraceEntry) {
		e.NeedsToolsPlan = chatmodel.Bool(plan.NeedsTools)
		e.ResearchFocus = plan.ResearchFocus
	})

	// researcher
	research, researchTrace, failed := r.research(ctx, messages, plan, toolsEnabled && plan.NeedsTools)
	if failed != nil {
		return failed
	}
	r.trace = append(r.trace, researchTrace...)

	// reviewer
	r.handoff(AgentResearcher, AgentReviewer, nil)
	reviewText, ce := r.stage(ctx, AgentReviewer,
		prompts.Reviewer,
		prompts.ReviewTask(r.prompt, research, plan.AnalysisFocus),
		"")
	if ce != nil {
		return r.fail(ctx, AgentReviewer, ce)
	}

	// finalizer
	r.handoff(AgentReviewer, AgentFinalizer, nil)
	finalText, ce := r.stage(ctx, AgentFinalizer,
		prompts.Finalizer(plan.FinalStyle),
		prompts.FinalTask(r.prompt, planText, research, ReviewerNotes(reviewText)),
		"")
	if ce != nil {
		return r.fail(ctx, AgentFinalizer, ce)
	}

	res := chatmodel.NewResponse(values.StringsCoalesce(strings.TrimSpace(finalText), chatmodel.DefaultEmptyResponse), r.trace)
	res.Trace = chatmodel.StepsOf(nil)
	res.MultiAgent = &chatmodel.MultiAgentInfo{
		Enabled:           true,
		Implemented:       true,
		Agents:            Agents,
		ToolsEnabled:      chatmodel.Bool(toolsEnabled),
		ResearchUsedTools: chatmodel.Bool(chatmodel.CountKind(researchTrace, chatmodel.KindTool) > 0),
		NeedsToolsPlan:    chatmodel.Bool(plan.NeedsTools),
	}
	return res
}

// research runs the researcher rounds until the first non-empty output
func (r *run) research(ctx context.Context, messages []llms.Message, plan *Plan, toolsEnabled bool) (string, []*chatmodel.TraceEntry, *chatmodel.TurnResult) {
	var (
		output string
		trace  []*chatmodel.TraceEntry
	)
	for round := 1; round <= r.cfg.MaxSpecialistRounds; round++ {
		conversation := make([]llms.Message, 0, len(messages)+1)
		conversation = append(conversation, messages...)
		conversation = append(conversation, llms.UserMessage(prompts.ResearchTask(round, plan.ResearchFocus)))

		rr := r.researcher.Run(ctx, conversation, toolsEnabled)
		for _, e := range rr.AgentTrace {
			if e.Agent == "" {
				e.Agent = AgentResearcher
			}
			e.AgentRound = round
		}
		trace = append(trace, rr.AgentTrace...)

		if rr.Failed() {
			metricskey.StatsPipelineStageFailed.IncrCounter(1, AgentResearcher)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "stage_failed",
				"agent", AgentResearcher,
				"round", round,
				"code", rr.StatusCode,
				"err", rr.Error,
			)
			res := &chatmodel.TurnResult{
				StatusCode: rr.StatusCode,
				Error:      values.StringsCoalesce(rr.Error, stageFailures[AgentResearcher]),
				Details:    rr.Details,
				AgentTrace: append(r.trace, trace...),
				Trace:      rr.Trace,
				MultiAgent: &chatmodel.MultiAgentInfo{
					Enabled:     true,
					Implemented: true,
					FailedAgent: AgentResearcher,
				},
			}
			if res.Trace == nil {
				res.Trace = chatmodel.StepsOf(nil)
			}
			return "", nil, res
		}

		output = strings.TrimSpace(rr.Response)
		if output != "" {
			break
		}
	}
	return output, trace, nil
}

// stage makes the single model call of the role,
// the conversation summary is prepended to the task when not empty
func (r *run) stage(ctx context.Context, agent, system, task, conversation string) (string, *llms.CallError) {
	user := strings.TrimSpace(task)
	if conversation != "" {
		user = prompts.OrchestratorTask(conversation, user)
	}
	messages := []llms.Message{
		llms.SystemMessage(system),
		llms.UserMessage(user),
	}

	resp, ce := assistants.CallModel(ctx, r.model, agent, 0, messages, r.cfg.Callback, r.cfg.CallOptions...)
	entry := &chatmodel.TraceEntry{
		Kind:      chatmodel.KindLLM,
		Agent:     agent,
		RawOutput: resp.Text(),
	}
	if ce != nil {
		entry.TraceStep = ce.TraceStep
	} else {
		entry.TraceStep = resp.TraceStep
	}
	r.trace = append(r.trace, entry)

	if ce != nil {
		return "", ce
	}
	return resp.Text(), nil
}

func (r *run) handoff(from, to string, apply func(*chatmodel.TraceEntry)) {
	e := &chatmodel.TraceEntry{
		Kind:    chatmodel.KindMultiAgent,
		Event:   chatmodel.EventHandoff,
		Agent:   from,
		ToAgent: to,
	}
	if apply != nil {
		apply(e)
	}
	r.trace = append(r.trace, e)
}

func (r *run) fail(ctx context.Context, agent string, ce *llms.CallError) *chatmodel.TurnResult {
	metricskey.StatsPipelineStageFailed.IncrCounter(1, agent)
	logger.ContextKV(ctx, xlog.WARNING,
		"status", "stage_failed",
		"agent", agent,
		"code", ce.StatusCode,
		"err", ce.Message,
	)
	res := chatmodel.NewFailure(ce, stageFailures[agent], r.trace)
	res.MultiAgent = &chatmodel.MultiAgentInfo{
		Enabled:     true,
		Implemented: true,
		FailedAgent: agent,
	}
	return res
}
