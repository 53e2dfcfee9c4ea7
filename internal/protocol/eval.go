package protocol

import "github.com/danmuck/webbridge/internal/protocol/wire"

// EvalIDPlaceholder is replaced by the host with the eval correlation id before execution.
const EvalIDPlaceholder = "__EVAL_ID__"

// EvalRequest is a backend-initiated command to run against the host surface.
type EvalRequest struct {
	Code string // field 1
}

// EvalResponse is the outcome of an EvalRequest. At most one of Result and Error is set.
type EvalResponse struct {
	Result string // field 1
	Error  string // field 2
}

func EncodeEvalRequest(req EvalRequest) []byte {
	return wire.AppendString(nil, 1, req.Code)
}

func DecodeEvalRequest(b []byte) (EvalRequest, error) {
	var out EvalRequest
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		if num == 1 {
			return true, readString(r, num, typ, &out.Code)
		}
		return false, nil
	})
	if err != nil {
		return EvalRequest{}, decodeError("eval request", err)
	}
	return out, nil
}

func EncodeEvalResponse(resp EvalResponse) []byte {
	var b []byte
	b = wire.AppendString(b, 1, resp.Result)
	b = wire.AppendString(b, 2, resp.Error)
	return b
}

func DecodeEvalResponse(b []byte) (EvalResponse, error) {
	var out EvalResponse
	err := decodeFields(b, func(r *wire.Reader, num uint32, typ wire.Type) (bool, error) {
		switch num {
		case 1:
			return true, readString(r, num, typ, &out.Result)
		case 2:
			return true, readString(r, num, typ, &out.Error)
		}
		return false, nil
	})
	if err != nil {
		return EvalResponse{}, decodeError("eval response", err)
	}
	return out, nil
}
