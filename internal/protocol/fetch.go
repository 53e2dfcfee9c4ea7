package protocol

import "github.com/danmuck/webbridge/internal/protocol/wire"

// RequestInfo opens a forwarded fetch stream.
type RequestInfo struct {
	Method  string            // field 1
	URL     string            // field 2
	Headers map[string]string // field 3
	HasBody bool              // field 4
}

// RequestData carries request body bytes.
type RequestData struct {
	Data []byte // field 1
	Done bool   // field 2
}

// FetchRequest is the host->backend envelope: exactly one of Info (field 1) or Data (field 2).
type FetchRequest struct {
	Info *RequestInfo
	Data *RequestData
}

// ResponseInfo carries the response status line and headers.
type ResponseInfo struct {
	Headers    map[string]string // field 1
	OK         bool              // field 2
	Status     uint32            // field 4
	StatusText string            // field 5
}

// ResponseData carries response body bytes. Done marks end of stream.
type ResponseData struct {
	Data []byte // field 1
	Done bool   // field 2
}

// FetchResponse is the backend->host envelope: Info (field 1) and/or Data (field 2).
type FetchResponse struct {
	Info *ResponseInfo
	Data *ResponseData
}

func marshalRequestInfo(info RequestInfo) []byte {
	var b []byte
	b = wire.AppendString(b, 1, info.Method)
	b = wire.AppendString(b, 2, info.URL)
	b = wire.AppendStringMap(b, 3, info.Headers)
	b = wire.AppendBool(b, 4, info.HasBody)
	return b
}

func marshalData(data []byte, done bool) []byte {
	var b []byte
	b = wire.AppendBytes(b, 1, data)
	b = wire.AppendBool(b, 2, done)
	return b
}

func marshalResponseInfo(info ResponseInfo) []byte {
	var b []byte
	b = wire.AppendStringMap(b, 1, info.Headers)
	b = wire.AppendBool(b, 2, info.OK)
	b = wire.AppendUint32(b, 4, info.Status)
	b = wire.AppendString(b, 5, info.StatusText)
	return b
}

// EncodeRequestInfo serializes a FetchRequest carrying request info.
func EncodeRequestInfo(info RequestInfo) []byte {
	return wire.AppendMessage(nil, 1, marshalRequestInfo(info))
}

// EncodeRequestData serializes a FetchRequest carrying a body chunk.
func EncodeRequestData(data RequestData) []byte {
	return wire.AppendMessage(nil, 2, marshalData(data.Data, data.Done))
}

// EncodeResponseInfo serializes a FetchResponse carrying response info.
func EncodeResponseInfo(info ResponseInfo) []byte {
	return wire.AppendMessage(nil, 1, marshalResponseInfo(info))
}

// EncodeResponseData serializes a FetchResponse carrying a body chunk.
func EncodeResponseData(data ResponseData) []byte {
	return wire.AppendMessage(nil, 2, marshalData(data.Data, data.Done))
}

func DecodeFetchRequest(b []byte) (FetchRequest, error) {
	var out FetchRequest
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			sub, err := readSubmessage(r, num, typ)
			if err != nil {
				return true, err
			}
			info, err := decodeRequestInfo(sub)
			if err != nil {
				return true, err
			}
			out.Info = &info
		case 2:
			sub, err := readSubmessage(r, num, typ)
			if err != nil {
				return true, err
			}
			data, done, err := decodeData(sub)
			if err != nil {
				return true, err
			}
			out.Data = &RequestData{Data: data, Done: done}
		default:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return FetchRequest{}, decodeError("fetch request", err)
	}
	return out, nil
}

func DecodeFetchResponse(b []byte) (FetchResponse, error) {
	var out FetchResponse
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			sub, err := readSubmessage(r, num, typ)
			if err != nil {
				return true, err
			}
			info, err := decodeResponseInfo(sub)
			if err != nil {
				return true, err
			}
			out.Info = &info
		case 2:
			sub, err := readSubmessage(r, num, typ)
			if err != nil {
				return true, err
			}
			data, done, err := decodeData(sub)
			if err != nil {
				return true, err
			}
			out.Data = &ResponseData{Data: data, Done: done}
		default:
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return FetchResponse{}, decodeError("fetch response", err)
	}
	return out, nil
}

func decodeRequestInfo(b []byte) (RequestInfo, error) {
	var info RequestInfo
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			return true, readString(r, num, typ, &info.Method)
		case 2:
			return true, readString(r, num, typ, &info.URL)
		case 3:
			return true, readHeaderEntry(r, num, typ, &info.Headers)
		case 4:
			return true, readBool(r, num, typ, &info.HasBody)
		}
		return false, nil
	})
	return info, err
}

func decodeResponseInfo(b []byte) (ResponseInfo, error) {
	var info ResponseInfo
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			return true, readHeaderEntry(r, num, typ, &info.Headers)
		case 2:
			return true, readBool(r, num, typ, &info.OK)
		case 4:
			return true, readUint32(r, num, typ, &info.Status)
		case 5:
			return true, readString(r, num, typ, &info.StatusText)
		}
		return false, nil
	})
	return info, err
}

func decodeData(b []byte) ([]byte, bool, error) {
	var (
		data []byte
		done bool
	)
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			return true, readBytes(r, num, typ, &data)
		case 2:
			return true, readBool(r, num, typ, &done)
		}
		return false, nil
	})
	return data, done, err
}
