package builtin

import (
	"context"
	"net"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/tools"
)

// DNSLookupInput is the input of dns_lookup
type DNSLookupInput struct {
	Host string `json:"host" jsonschema:"description=Hostname to resolve"`
}

// DNSLookupResult is the output of dns_lookup
type DNSLookupResult struct {
	Host      string   `json:"host"`
	Addresses []string `json:"addresses"`
}

// Resolver resolves host names
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSLookup returns the dns_lookup tool using net.DefaultResolver
func DNSLookup() *tools.Func[DNSLookupInput, DNSLookupResult] {
	return DNSLookupWithResolver(net.DefaultResolver)
}

// DNSLookupWithResolver returns the dns_lookup tool
func DNSLookupWithResolver(r Resolver) *tools.Func[DNSLookupInput, DNSLookupResult] {
	return tools.MustFunc(DNSLookupName,
		"Resolve a hostname to IP addresses.",
		func(ctx context.Context, in *DNSLookupInput) (*DNSLookupResult, error) {
			host := strings.TrimSpace(in.Host)
			if host == "" {
				return nil, errors.New("dns_lookup requires `host`.")
			}
			addrs, err := r.LookupHost(ctx, host)
			if err != nil {
				return nil, errors.Newf("dns lookup failed: %s", err.Error())
			}
			uniq := map[string]struct{}{}
			list := make([]string, 0, len(addrs))
			for _, a := range addrs {
				if _, seen := uniq[a]; !seen {
					uniq[a] = struct{}{}
					list = append(list, a)
				}
			}
			sort.Strings(list)
			return &DNSLookupResult{Host: host, Addresses: list}, nil
		})
}
