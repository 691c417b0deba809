package ingest

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/odflow/odflow/prefix"
	"github.com/odflow/odflow/query"
)

// filterMatch reports whether spec passes filter: filter is a
// generalization of spec (or equal to it) — the same relation
// prefix.IsOverlapped already captures between a coarser and a more
// specific key. A filter whose prefix is longer than the record's own
// matching bits never matches (spec: "address filter rejects flows with
// shorter matching prefix than the filter's").
func filterMatch(filter *prefix.Spec, spec *prefix.Spec) bool {
	return prefix.IsOverlapped(filter, spec)
}

// ParseFilterConfig extracts a "filter" string under key from a
// loosely-structured JSON config blob (SPEC_FULL §11 "Configuration
// surface"), without unmarshalling the whole document. Returns nil,
// nil if key is absent — no filter configured.
func ParseFilterConfig(doc []byte, key string) (*query.Filter, error) {
	val, dtype, _, err := jsonparser.Get(doc, key)
	if err == jsonparser.KeyPathNotFoundError {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: reading %q: %w", key, err)
	}
	if dtype != jsonparser.String {
		return nil, fmt.Errorf("ingest: %q must be a string", key)
	}
	f, err := ParseFilterExpr(string(val))
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing %q: %w", key, err)
	}
	return f, nil
}

// ParseFilterExpr parses a "<addr>[/<len>][:<proto>[:<port>]]" filter
// expression into a query.Filter, where any component may be "*" (or
// simply omitted) for a wildcard. The address clause builds a 4-byte
// prefix.Spec with Srclen set to the expression's mask length; Dst and
// Dstlen stay zero, so only the flow's source address is constrained.
// The expression is split at every ':' before the address is parsed, so
// an IPv6 address cannot be given. The protocol clause is an entirely separate 3-byte
// prefix.Spec (spec §3's protocol/port domain: proto(8 bits) optionally
// narrowed by port(16 bits), matching DomainProto/protocolSpec) — it is
// never folded into the address Spec's byte array, since the two keys
// belong to different lattices and an overwrite there would corrupt the
// address filter's first octet.
func ParseFilterExpr(expr string) (*query.Filter, error) {
	parts := strings.SplitN(expr, ":", 3)

	var f query.Filter

	if addrPart := parts[0]; addrPart != "*" && addrPart != "" {
		spec, err := parseAddrClause(addrPart)
		if err != nil {
			return nil, err
		}
		f.Addr = spec
	}

	if len(parts) >= 2 && parts[1] != "*" && parts[1] != "" {
		spec, err := parseProtoClause(parts[1], parts[2:])
		if err != nil {
			return nil, err
		}
		f.Proto = spec
	}

	return &f, nil
}

func parseAddrClause(addrPart string) (*prefix.Spec, error) {
	cidr := addrPart
	if !strings.Contains(cidr, "/") {
		if strings.Contains(cidr, ":") {
			cidr += "/128"
		} else {
			cidr += "/32"
		}
	}
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, fmt.Errorf("ingest: invalid filter address %q: %w", addrPart, err)
	}
	ones, _ := ipnet.Mask.Size()

	raw := ip.To4()
	bytesize := 4
	if raw == nil {
		raw = ip.To16()
		bytesize = 16
	}

	var spec prefix.Spec
	prefix.Set(raw, uint8(ones), spec.Src[:], bytesize)
	spec.Srclen = uint8(ones)
	return &spec, nil
}

// parseProtoClause builds the protocol/port filter Spec. portParts holds
// the remainder of the expression after the protocol field — empty if no
// port clause was given, one element ("<port>" or "*") otherwise.
func parseProtoClause(protoField string, portParts []string) (*prefix.Spec, error) {
	proto, err := strconv.Atoi(protoField)
	if err != nil {
		return nil, fmt.Errorf("ingest: invalid filter protocol %q: %w", protoField, err)
	}

	var spec prefix.Spec
	spec.Src[0], spec.Dst[0] = byte(proto), byte(proto)
	spec.Srclen, spec.Dstlen = 8, 8

	if len(portParts) == 1 && portParts[0] != "*" && portParts[0] != "" {
		port, err := strconv.Atoi(portParts[0])
		if err != nil {
			return nil, fmt.Errorf("ingest: invalid filter port %q: %w", portParts[0], err)
		}
		spec.Src[1], spec.Src[2] = byte(port>>8), byte(port)
		spec.Dst[1], spec.Dst[2] = byte(port>>8), byte(port)
		spec.Srclen, spec.Dstlen = 24, 24
	}

	return &spec, nil
}
