package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/webbridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// EvalMessagePrefix marks eval outcomes on the surface message channel:
// __bldr_eval:<id>:<r|e>:<data>.
const EvalMessagePrefix = "__bldr_eval:"

type pendingEval struct {
	ch        chan protocol.EvalResponse
	delivered bool
}

// Registry correlates eval ids with results delivered from the surface message channel.
// Each entry is registered once, delivered at most once, and removed by Wait.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*pendingEval
	seq     atomic.Uint64
}

func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]*pendingEval),
	}
}

// NextID mints e0, e1, ...
func (r *Registry) NextID() string {
	return "e" + strconv.FormatUint(r.seq.Add(1)-1, 10)
}

func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[id]; ok {
		return fmt.Errorf("%w: %s", ErrEvalIDInUse, id)
	}
	r.pending[id] = &pendingEval{ch: make(chan protocol.EvalResponse, 1)}
	return nil
}

// Deliver hands resp to the waiter for id. It reports false when id is unknown,
// already consumed, or already delivered.
func (r *Registry) Deliver(id string, resp protocol.EvalResponse) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if !ok || p.delivered {
		return false
	}
	p.delivered = true
	p.ch <- resp
	return true
}

// Wait blocks until id is delivered, timeout elapses, or ctx ends, then removes the entry.
func (r *Registry) Wait(ctx context.Context, id string, timeout time.Duration) (protocol.EvalResponse, error) {
	r.mu.Lock()
	p, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return protocol.EvalResponse{}, fmt.Errorf("%w: %s", ErrUnknownEval, id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case resp := <-p.ch:
		r.remove(id)
		return resp, nil
	case <-timer.C:
		err = ErrEvalTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.remove(id)
	// A delivery may have landed between the timer firing and the removal.
	select {
	case resp := <-p.ch:
		return resp, nil
	default:
	}
	return protocol.EvalResponse{}, err
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Len is the number of registered, unconsumed evals.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// HandleMessage consumes eval outcome messages from the surface message channel.
// It returns false for messages it does not recognize so the caller can pass them on.
func (r *Registry) HandleMessage(msg string) bool {
	id, resp, ok := ParseEvalMessage(msg)
	if !ok {
		return false
	}
	if !r.Deliver(id, resp) {
		log.Debug().Str("eval_id", id).Msg("eval outcome for unknown or consumed id")
	}
	return true
}

// ParseEvalMessage splits __bldr_eval:<id>:<type>:<data>. Type 'r' is a result;
// any other type is an error.
func ParseEvalMessage(msg string) (string, protocol.EvalResponse, bool) {
	rest, ok := strings.CutPrefix(msg, EvalMessagePrefix)
	if !ok {
		return "", protocol.EvalResponse{}, false
	}
	sep1 := strings.IndexByte(rest, ':')
	if sep1 < 0 || sep1+2 >= len(rest) {
		return "", protocol.EvalResponse{}, false
	}
	sep2 := strings.IndexByte(rest[sep1+1:], ':')
	if sep2 < 0 {
		return "", protocol.EvalResponse{}, false
	}
	sep2 += sep1 + 1

	id := rest[:sep1]
	data := rest[sep2+1:]
	if rest[sep1+1] == 'r' {
		return id, protocol.EvalResponse{Result: data}, true
	}
	return id, protocol.EvalResponse{Error: data}, true
}

// FormatEvalMessage builds the message ParseEvalMessage accepts.
func FormatEvalMessage(id string, resp protocol.EvalResponse) string {
	if resp.Error != "" {
		return EvalMessagePrefix + id + ":e:" + resp.Error
	}
	return EvalMessagePrefix + id + ":r:" + resp.Result
}
