package output

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/odflow/odflow/odflow"
	"github.com/odflow/odflow/prefix"
)

// FormatOdflow renders an odflow's key the way agurim_subr.c's
// odflow_print does: "addr addr" for address families, "proto:port:port"
// for the protocol family.
func FormatOdflow(o *odflow.Odflow) string {
	switch o.AF {
	case odflow.AF_INET:
		return formatIP(o.Spec.Src[:4], o.Spec.Srclen) + " " + formatIP(o.Spec.Dst[:4], o.Spec.Dstlen)
	case odflow.AF_INET6:
		return formatIP6(o.Spec.Src[:16], o.Spec.Srclen) + " " + formatIP6(o.Spec.Dst[:16], o.Spec.Dstlen)
	case odflow.AF_LOCAL:
		return FormatProto(&o.Spec)
	default:
		return "?"
	}
}

func formatIP(ip []byte, length uint8) string {
	if length == 0 {
		return "*"
	}
	s := net.IP(ip).String()
	if length < 32 {
		return fmt.Sprintf("%s/%d", s, length)
	}
	return s
}

func formatIP6(ip []byte, length uint8) string {
	if length == 0 {
		return "*::"
	}
	s := net.IP(ip).String()
	if length < 128 {
		return fmt.Sprintf("%s/%d", s, length)
	}
	return s
}

// FormatProto renders a protocol/port key as "proto:srcport:dstport",
// expanding a masked port into a "-"-joined range when its length is
// shorter than the full 24-bit label (spec §6, agurim_subr.c:odproto_print).
func FormatProto(s *prefix.Spec) string {
	var b strings.Builder

	if s.Src[0] == 0 {
		b.WriteString("*:")
	} else {
		b.WriteString(strconv.Itoa(int(s.Src[0])))
		b.WriteByte(':')
	}

	srcPort := int(s.Src[1])<<8 + int(s.Src[2])
	writePort(&b, srcPort, s.Srclen)
	b.WriteByte(':')

	dstPort := int(s.Dst[1])<<8 + int(s.Dst[2])
	writePort(&b, dstPort, s.Dstlen)

	return b.String()
}

func writePort(b *strings.Builder, port int, length uint8) {
	if port == 0 {
		b.WriteByte('*')
		return
	}
	b.WriteString(strconv.Itoa(port))
	if length < 24 {
		end := port + (1 << (24 - length)) - 1
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(end))
	}
}
