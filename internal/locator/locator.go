// Package locator parses the composite OJP locator string described in
// spec.md §4.1 and §6:
//
//	<scheme>:<proxy-tag>[H1:P1(,H2:P2)*(>PROFILE)?]_<downstream-locator>
//
// e.g. jdbc:ojp[localhost:1059]_h2:mem:test
// or   jdbc:ojp[a:1059,b:1059>fast]_postgresql://x/y
package locator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/openjp-go/ojp/internal/endpoint"
	"github.com/openjp-go/ojp/internal/errs"
)

// DefaultProfileName is returned by ExtractPoolProfile when the locator has
// no `>name` suffix inside its bracketed endpoint list.
const DefaultProfileName = "default"

// ProxyTag is the literal tag this driver recognises between the scheme and
// the bracketed endpoint list.
const ProxyTag = "ojp"

// bracketPattern extracts the bracketed portion after the proxy tag, per
// spec.md §6: "<proxy-tag>\[([^\]]+)\]".
var bracketPattern = regexp.MustCompile(`ojp\[([^\]]+)\]`)

// ParseEndpoints extracts the endpoint list from a locator and returns it as
// an EndpointSet in original (insertion) order. It never returns an empty
// set on success.
func ParseEndpoints(loc string) (*endpoint.EndpointSet, error) {
	body, err := bracketBody(loc)
	if err != nil {
		return nil, err
	}

	profileSep := strings.LastIndex(body, ">")
	if profileSep >= 0 {
		body = body[:profileSep]
	}

	var endpoints []endpoint.Endpoint
	for _, raw := range strings.Split(body, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		ep, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	if len(endpoints) == 0 {
		return nil, errs.New(errs.KindInvalidLocator, "endpoint list is empty")
	}

	return endpoint.NewEndpointSet(endpoints), nil
}

// ExtractDownstreamURL removes the proxy-tag-and-brackets plus the trailing
// `_` separator from the locator, once, splicing together whatever precedes
// the brackets (typically a "<scheme>:" prefix) with whatever follows the
// separator, e.g. "jdbc:ojp[h:1059]_h2:mem:test" -> "jdbc:h2:mem:test".
func ExtractDownstreamURL(loc string) (string, error) {
	bracket, err := bracketSpanOf(loc)
	if err != nil {
		return "", err
	}

	rest := loc[bracket.end:]
	idx := strings.Index(rest, "_")
	if idx < 0 {
		return "", errs.New(errs.KindInvalidLocator, "missing '_' separator before downstream locator")
	}
	return loc[:bracket.start] + rest[idx+1:], nil
}

// ExtractPoolProfile returns the `>name` suffix of the bracketed endpoint
// list, or DefaultProfileName ("default") when none is present.
func ExtractPoolProfile(loc string) (string, error) {
	body, err := bracketBody(loc)
	if err != nil {
		return "", err
	}

	idx := strings.LastIndex(body, ">")
	if idx < 0 {
		return DefaultProfileName, nil
	}

	name := strings.TrimSpace(body[idx+1:])
	if name == "" {
		return DefaultProfileName, nil
	}
	return name, nil
}

type bracketSpan struct {
	start, end int
}

// bracketSpanOf locates the full `ojp[...]` match so callers can slice out
// whatever comes before or after it.
func bracketSpanOf(loc string) (bracketSpan, error) {
	m := bracketPattern.FindStringSubmatchIndex(loc)
	if m == nil {
		return bracketSpan{}, errs.New(errs.KindInvalidLocator, "locator does not match the ojp[...] pattern")
	}
	return bracketSpan{start: m[0], end: m[1]}, nil
}

func bracketBody(loc string) (string, error) {
	m := bracketPattern.FindStringSubmatch(loc)
	if m == nil {
		return "", errs.New(errs.KindInvalidLocator, "locator does not match the ojp[...] pattern")
	}
	return m[1], nil
}

func parseEntry(entry string) (endpoint.Endpoint, error) {
	colon := strings.LastIndex(entry, ":")
	if colon < 0 {
		return endpoint.Endpoint{}, errs.New(errs.KindInvalidLocator, "endpoint entry missing ':': "+entry)
	}

	host := strings.TrimSpace(entry[:colon])
	portStr := strings.TrimSpace(entry[colon+1:])
	if host == "" {
		return endpoint.Endpoint{}, errs.New(errs.KindInvalidLocator, "endpoint entry missing host: "+entry)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return endpoint.Endpoint{}, errs.New(errs.KindInvalidLocator, "non-numeric port in endpoint entry: "+entry)
	}
	if port < 1 || port > 65535 {
		return endpoint.Endpoint{}, errs.New(errs.KindInvalidLocator, "port out of range in endpoint entry: "+entry)
	}

	return endpoint.NewEndpoint(host, port), nil
}
