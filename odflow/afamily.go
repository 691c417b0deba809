package odflow

// AddressFamily tags an odflow with the domain its prefix key belongs to.
//
//go:generate go run github.com/dmarkham/enumer -type=AddressFamily -trimprefix=AF_
type AddressFamily uint8

const (
	AF_INET  AddressFamily = iota + 1 // IPv4 address odflow
	AF_INET6                          // IPv6 address odflow
	AF_LOCAL                          // protocol/port odflow
)

// String returns the enumer-style name used by the text/JSON emitters.
// Hand-written in the shape go:generate github.com/dmarkham/enumer would
// produce, since generation isn't run in this repo.
func (af AddressFamily) String() string {
	switch af {
	case AF_INET:
		return "INET"
	case AF_INET6:
		return "INET6"
	case AF_LOCAL:
		return "LOCAL"
	default:
		return "AddressFamily(" + itoa(uint8(af)) + ")"
	}
}

func itoa(v uint8) string {
	if v == 0 {
		return "0"
	}
	var buf [3]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
