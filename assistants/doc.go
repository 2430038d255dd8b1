// Package assistants provides the tool-using agent loop: the model decides on each step
// to answer or to call a tool, tool results are folded back into the conversation
// until a final answer, a terminal condition, or the step budget is reached.
package assistants
