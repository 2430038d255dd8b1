package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/multiagent"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/store"
	"github.com/effective-security/mcpagent/toolset"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

// TurnFlags are the flags of the chat and multi commands
type TurnFlags struct {
	NoTools     bool
	History     string
	Stats       bool
	Interactive bool
}

func (f *TurnFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.NoTools, "no-tools", false, "disable tool execution for the turn")
	flags.StringVar(&f.History, "history", "", "JSON file with the previous messages of the conversation")
	flags.BoolVar(&f.Stats, "stats", false, "print the run statistics to stderr")
	flags.BoolVarP(&f.Interactive, "interactive", "i", false, "read prompts line by line from stdin, "+ResetCommand+" clears the conversation")
}

func chatCmd(a *App) *cobra.Command {
	f := &TurnFlags{}
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Run a single agent turn, the prompt is read from stdin when not provided",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.turn(cmd, args, f, func(_ context.Context, factory llmfactory.Factory, ts *toolset.Toolset, cb assistants.Callback) (turnRunner, error) {
				model, err := factory.AssistantModel(assistants.DefaultName)
				if err != nil {
					return nil, err
				}
				return assistants.New(model, ts, a.agentOptions(cb)...), nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func multiCmd(a *App) *cobra.Command {
	f := &TurnFlags{}
	cmd := &cobra.Command{
		Use:   "multi [prompt]",
		Short: "Run a multi-agent turn: orchestrator, researcher, reviewer and finalizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.turn(cmd, args, f, func(_ context.Context, factory llmfactory.Factory, ts *toolset.Toolset, cb assistants.Callback) (turnRunner, error) {
				model, err := factory.AssistantModel(multiagent.DefaultName)
				if err != nil {
					return nil, err
				}
				return multiagent.New(model, ts,
					multiagent.WithMaxSpecialistRounds(a.Config().MultiAgent.MaxSpecialistRounds),
					multiagent.WithCallback(cb),
					multiagent.WithCallOptions(a.callOptions()...),
					multiagent.WithResearcherOptions(a.loopOptions()...),
				), nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

type turnRunner interface {
	Run(ctx context.Context, messages []llms.Message, toolsEnabled bool) *chatmodel.TurnResult
}

type runnerFactory func(ctx context.Context, factory llmfactory.Factory, ts *toolset.Toolset, cb assistants.Callback) (turnRunner, error)

func (a *App) agentOptions(cb assistants.Callback) []assistants.Option {
	opts := append(a.loopOptions(), assistants.WithCallback(cb))
	if callOpts := a.callOptions(); len(callOpts) > 0 {
		opts = append(opts, assistants.WithCallOptions(callOpts...))
	}
	return opts
}

// loopOptions returns the tool loop limits of the config
func (a *App) loopOptions() []assistants.Option {
	cfg := a.Config().Agent
	return []assistants.Option{
		assistants.WithMaxSteps(cfg.MaxSteps),
		assistants.WithBreakRepeatedToolCalls(cfg.BreakRepeatedToolCalls),
	}
}

func (a *App) callOptions() []llms.CallOption {
	cfg := a.Config().Agent
	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return opts
}

// Toolset returns the toolset of the configured host,
// the builtin tools are served in process when local_tools is set
func (a *App) Toolset() (*toolset.Toolset, error) {
	tc, err := a.Transport()
	if err != nil {
		return nil, err
	}
	var opts []toolset.Option
	if a.Config().Agent.LocalTools {
		reg, err := a.Registry()
		if err != nil {
			return nil, err
		}
		opts = append(opts, toolset.WithLocalTools(reg))
	}
	return toolset.New(tc, opts...), nil
}

// ResetCommand clears the conversation in the interactive mode
const ResetCommand = "/reset"

func (a *App) turn(cmd *cobra.Command, args []string, f *TurnFlags, newRunner runnerFactory) error {
	ts, err := a.Toolset()
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	if a.Verbose {
		cb.Add(callbacks.NewPrinter(stderr, callbacks.ModeVerbose))
	}
	var pad *callbacks.Scratchpad
	if f.Stats {
		pad = callbacks.NewScratchpad(callbacks.ModeDefault)
		cb.Add(pad)
	}

	ctx, chatCtx := chatmodel.EnsureChatContext(cmd.Context())
	runner, err := newRunner(ctx, llmfactory.New(a.Config().LLM), ts, cb)
	if err != nil {
		return err
	}

	run := func(messages []llms.Message) *chatmodel.TurnResult {
		turn := chatCtx.NextTurn()
		if pad != nil {
			pad.StartRun(ctx)
		}
		res := runner.Run(ctx, messages, !f.NoTools)
		if pad != nil {
			_, out := pad.EndRun(ctx)
			_, _ = stderr.Write(out)
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"chat_id", chatCtx.GetChatID(),
			"turn", turn,
			"status", res.StatusCode,
			"trace", len(res.AgentTrace),
		)
		return res
	}

	if f.Interactive {
		return a.interactive(ctx, cmd, f.History, run)
	}

	messages, err := conversation(cmd.InOrStdin(), f.History, args)
	if err != nil {
		return err
	}
	res := run(messages)
	if err = a.Print(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Failed() {
		return errors.Newf("turn failed with status %d: %s", res.StatusCode, res.Error)
	}
	return nil
}

// interactive runs a turn for each line of stdin,
// the conversation is kept in the memory store of the chat
func (a *App) interactive(ctx context.Context, cmd *cobra.Command, history string, run func([]llms.Message) *chatmodel.TurnResult) error {
	st := store.NewMemoryStore(a.Config().Agent.HistoryLimit)
	if history != "" {
		messages, err := conversation(nil, history, []string{})
		if err != nil {
			return err
		}
		if err = st.Add(ctx, messages...); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		prompt := strings.TrimSpace(scanner.Text())
		switch prompt {
		case "":
			continue
		case ResetCommand:
			if err := st.Reset(ctx); err != nil {
				return err
			}
			continue
		}

		user := llms.UserMessage(prompt)
		res := run(append(st.Messages(ctx), user))
		if err := a.Print(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.Failed() {
			// the failed prompt is not kept
			continue
		}
		if err := st.Add(ctx, user, llms.AssistantMessage(res.Response)); err != nil {
			return err
		}
	}
	return errors.WithMessage(scanner.Err(), "unable to read prompt")
}

// conversation returns the history with the prompt appended,
// the prompt is read from stdin when there are no arguments and no history
func conversation(stdin io.Reader, history string, args []string) ([]llms.Message, error) {
	var messages []llms.Message
	if history != "" {
		b, err := os.ReadFile(history)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to read history")
		}
		if err = json.Unmarshal(b, &messages); err != nil {
			return nil, errors.WithMessagef(err, "invalid history: %s", history)
		}
		for i := range messages {
			messages[i].Role = llms.ParseRole(string(messages[i].Role))
		}
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" && len(messages) == 0 && stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to read prompt")
		}
		prompt = strings.TrimSpace(string(b))
	}
	if prompt != "" {
		messages = append(messages, llms.UserMessage(prompt))
	}
	return messages, nil
}
