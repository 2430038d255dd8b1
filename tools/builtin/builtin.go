// Package builtin provides the tools served by the local tool host.
package builtin

import (
	"github.com/effective-security/mcpagent/tools"
)

// Tool names
const (
	CalculatorName  = "calculator"
	CurrentTimeName = "current_time"
	DNSLookupName   = "dns_lookup"
	HashTextName    = "hash_text"
	URLCodecName    = "url_codec"
	TextStatsName   = "text_stats"
	UUIDName        = "uuid_generate"
	Base64Name      = "base64_codec"
)

const (
	modeEncode = "encode"
	modeDecode = "decode"
)

// Tools returns the builtin tools in the listing order
func Tools() []tools.ITool {
	return []tools.ITool{
		Calculator(),
		CurrentTime(),
		DNSLookup(),
		HashText(),
		URLCodec(),
		TextStats(),
		UUIDGenerate(),
		Base64Codec(),
	}
}

// NewRegistry returns registry with the builtin tools and extra tools
func NewRegistry(extra ...tools.ITool) (*tools.Registry, error) {
	return tools.NewRegistry(append(Tools(), extra...)...)
}

// CodecResult is the output of the codec tools
type CodecResult struct {
	Mode   string `json:"mode"`
	Input  string `json:"input"`
	Output string `json:"output"`
}
