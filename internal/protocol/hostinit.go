package protocol

import (
	"fmt"

	"github.com/danmuck/webbridge/internal/protocol/wire"
)

// ExternalLinks controls whether the host surface may navigate off-origin.
type ExternalLinks uint32

const (
	ExternalLinksUnspecified ExternalLinks = iota
	ExternalLinksAllow
	ExternalLinksDeny
)

func (e ExternalLinks) String() string {
	switch e {
	case ExternalLinksUnspecified:
		return "unspecified"
	case ExternalLinksAllow:
		return "allow"
	case ExternalLinksDeny:
		return "deny"
	default:
		return fmt.Sprintf("external_links(%d)", uint32(e))
	}
}

// HostInit is the startup configuration handed to the host through its environment.
type HostInit struct {
	DevTools      bool          // field 1
	ExternalLinks ExternalLinks // field 2
}

func EncodeHostInit(init HostInit) []byte {
	var b []byte
	b = wire.AppendBool(b, 1, init.DevTools)
	b = wire.AppendUint32(b, 2, uint32(init.ExternalLinks))
	return b
}

func DecodeHostInit(b []byte) (HostInit, error) {
	var out HostInit
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			return true, readBool(r, num, typ, &out.DevTools)
		case 2:
			var v uint32
			if err := readUint32(r, num, typ, &v); err != nil {
				return true, err
			}
			out.ExternalLinks = ExternalLinks(v)
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return HostInit{}, decodeError("host init", err)
	}
	return out, nil
}

// ParseHostInit decodes the base64 text carried in the host environment.
// Empty input yields the zero HostInit.
func ParseHostInit(text string) (HostInit, error) {
	raw := Base64Decode(text)
	if len(raw) == 0 {
		return HostInit{}, nil
	}
	return DecodeHostInit(raw)
}
