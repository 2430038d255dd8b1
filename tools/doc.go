// Package tools defines the Tool interface, the typed Func adapter and the ordered
// Registry that executes tools by name for the agent loop and the MCP tool host.
package tools
