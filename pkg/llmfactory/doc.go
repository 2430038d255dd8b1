// Package llmfactory provides factories and configuration for LLM model instantiation,
// supporting Ollama, OpenAI, Anthropic, Gemini and Bedrock providers and model selection per agent.
package llmfactory
