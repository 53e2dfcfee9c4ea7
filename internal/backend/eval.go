package backend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/danmuck/webbridge/internal/bridge"
	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/danmuck/webbridge/internal/protocol/frame"
)

// WrapEvalCode turns a JavaScript expression into code that reports its settled
// value through window.__bldr_post using the eval message format. Non-string
// values are JSON encoded.
func WrapEvalCode(expr string) string {
	prefix := strconv.Quote(bridge.EvalMessagePrefix)
	placeholder := strconv.Quote(protocol.EvalIDPlaceholder)
	return fmt.Sprintf(`(async () => {
  const id = %s;
  const post = (kind, data) => window.__bldr_post(%s + id + ":" + kind + ":" + data);
  try {
    const v = await (%s);
    post("r", typeof v === "string" ? v : (JSON.stringify(v) ?? ""));
  } catch (e) {
    post("e", String(e && e.message ? e.message : e));
  }
})();`, placeholder, prefix, expr)
}

// Eval runs expr on the host surface and returns its result.
func Eval(ctx context.Context, session bridge.Session, expr string, limits frame.Limits) (string, error) {
	stream, err := session.Open()
	if err != nil {
		return "", fmt.Errorf("backend: open eval stream: %w", err)
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() {
		_ = stream.SetDeadline(time.Now())
	})
	defer stop()

	req := protocol.EncodeEvalRequest(protocol.EvalRequest{Code: WrapEvalCode(expr)})
	if err := frame.WriteFrame(stream, req, limits); err != nil {
		return "", fmt.Errorf("backend: send eval: %w", err)
	}
	payload, err := frame.ReadFrame(stream, limits)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("backend: read eval result: %w", err)
	}
	resp, err := protocol.DecodeEvalResponse(payload)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrEvalFailed, resp.Error)
	}
	return resp.Result, nil
}
