package protocol

// Base64Decode decodes standard-alphabet base64 leniently: padding, whitespace and any
// other non-alphabet byte is skipped, and trailing bits that do not fill a byte are dropped.
// It never fails.
func Base64Decode(s string) []byte {
	out := make([]byte, 0, len(s)*3/4)
	var (
		acc  uint32
		bits uint
	)
	for i := 0; i < len(s); i++ {
		v, ok := base64Value(s[i])
		if !ok {
			continue
		}
		acc = acc<<6 | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
			acc &= 1<<bits - 1
		}
	}
	return out
}

func base64Value(c byte) (byte, bool) {
	switch {
	case c >= 'A' && c <= 'Z':
		return c - 'A', true
	case c >= 'a' && c <= 'z':
		return c - 'a' + 26, true
	case c >= '0' && c <= '9':
		return c - '0' + 52, true
	case c == '+':
		return 62, true
	case c == '/':
		return 63, true
	}
	return 0, false
}
