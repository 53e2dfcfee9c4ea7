package protocol

import (
	"bytes"

	"github.com/danmuck/webbridge/internal/protocol/wire"
)

// fieldFunc decodes one known field and reports whether num was handled.
type fieldFunc func(r *wire.Reader, num uint32, typ wire.Type) (bool, error)

// decodeFields walks b and hands each field to fn, skipping the ones it leaves unhandled.
func decodeFields(b []byte, fn fieldFunc) error {
	r := wire.NewReader(b)
	for !r.Done() {
		num, typ, err := r.Tag()
		if err != nil {
			return err
		}
		handled, err := fn(r, num, typ)
		if err != nil {
			return err
		}
		if handled {
			continue
		}
		if err := r.Skip(typ); err != nil {
			return err
		}
	}
	return nil
}

func readString(r *wire.Reader, num uint32, typ wire.Type, dst *string) error {
	if err := wire.Expect(num, typ, wire.TypeBytes); err != nil {
		return err
	}
	v, err := r.String()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readBytes(r *wire.Reader, num uint32, typ wire.Type, dst *[]byte) error {
	if err := wire.Expect(num, typ, wire.TypeBytes); err != nil {
		return err
	}
	v, err := r.Bytes()
	if err != nil {
		return err
	}
	*dst = bytes.Clone(v)
	return nil
}

func readBool(r *wire.Reader, num uint32, typ wire.Type, dst *bool) error {
	if err := wire.Expect(num, typ, wire.TypeVarint); err != nil {
		return err
	}
	v, err := r.Bool()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readUint32(r *wire.Reader, num uint32, typ wire.Type, dst *uint32) error {
	if err := wire.Expect(num, typ, wire.TypeVarint); err != nil {
		return err
	}
	v, err := r.Uint32()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readSubmessage(r *wire.Reader, num uint32, typ wire.Type) ([]byte, error) {
	if err := wire.Expect(num, typ, wire.TypeBytes); err != nil {
		return nil, err
	}
	return r.Bytes()
}

// readHeaderEntry decodes one map entry into headers. Entries with an empty key are dropped.
func readHeaderEntry(r *wire.Reader, num uint32, typ wire.Type, headers *map[string]string) error {
	entry, err := readSubmessage(r, num, typ)
	if err != nil {
		return err
	}
	k, v, err := wire.ReadStringMapEntry(entry)
	if err != nil {
		return err
	}
	if k == "" {
		return nil
	}
	if *headers == nil {
		*headers = make(map[string]string)
	}
	(*headers)[k] = v
	return nil
}
