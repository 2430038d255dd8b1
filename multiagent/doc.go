// Package multiagent runs the fixed orchestrator, researcher, reviewer and finalizer
// pipeline over one conversation turn. The researcher is the tool-using agent loop,
// the other roles make a single model call each.
package multiagent
