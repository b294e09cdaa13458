package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/flow"
	"github.com/BTreeMap/HydroPipe/internal/models"
	"github.com/BTreeMap/HydroPipe/internal/store"
)

// Handler turns one inbound message into a reply.
type Handler interface {
	Handle(ctx context.Context, userID, text string) (flow.Reply, error)
}

// fallbackReply is sent when a handler panics or fails.
const fallbackReply = "😔 Sorry, something went wrong. Please try again."

// Router reads a Service's responses and replies through it. Each user gets
// a FIFO mailbox drained by one worker goroutine, which exits when the
// mailbox is empty. Different users are handled in parallel.
type Router struct {
	svc      Service
	handler  Handler
	receipts store.ReceiptStore

	mu    sync.Mutex
	boxes map[string]*mailbox
	wg    sync.WaitGroup
}

type mailbox struct {
	queue []models.Response
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithReceiptStore records every receipt the service emits.
func WithReceiptStore(rs store.ReceiptStore) RouterOption {
	return func(r *Router) { r.receipts = rs }
}

// NewRouter builds a router for svc and handler.
func NewRouter(svc Service, handler Handler, opts ...RouterOption) *Router {
	r := &Router{
		svc:     svc,
		handler: handler,
		boxes:   make(map[string]*mailbox),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes events until ctx is done or the service closes its response
// channel, then waits for in-flight messages to finish.
func (r *Router) Run(ctx context.Context) error {
	responses := r.svc.Responses()
	receipts := r.svc.Receipts()
	slog.Info("Router.Run: started")
	defer slog.Info("Router.Run: stopped")
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp, ok := <-responses:
			if !ok {
				return nil
			}
			r.enqueue(ctx, resp)
		case rc, ok := <-receipts:
			if !ok {
				receipts = nil
				continue
			}
			r.recordReceipt(rc)
		}
	}
}

// Active returns the number of users with a running worker.
func (r *Router) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boxes)
}

func (r *Router) recordReceipt(rc models.Receipt) {
	if r.receipts == nil {
		return
	}
	if err := r.receipts.AddReceipt(rc); err != nil {
		slog.Warn("Router.recordReceipt: failed to store receipt", "to", rc.To, "error", err)
	}
}

func (r *Router) enqueue(ctx context.Context, resp models.Response) {
	userID, err := r.svc.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Warn("Router.enqueue: dropping message from invalid sender", "from", resp.From, "error", err)
		return
	}
	resp.From = userID

	r.mu.Lock()
	defer r.mu.Unlock()
	if box, ok := r.boxes[userID]; ok {
		box.queue = append(box.queue, resp)
		return
	}
	box := &mailbox{queue: []models.Response{resp}}
	r.boxes[userID] = box
	r.wg.Add(1)
	go r.work(ctx, userID, box)
}

// work drains box and removes it once empty.
func (r *Router) work(ctx context.Context, userID string, box *mailbox) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(box.queue) == 0 {
			delete(r.boxes, userID)
			r.mu.Unlock()
			return
		}
		resp := box.queue[0]
		box.queue = box.queue[1:]
		r.mu.Unlock()

		r.process(ctx, resp)
	}
}

func (r *Router) process(ctx context.Context, resp models.Response) {
	reply, err := r.handle(ctx, resp)
	if err != nil {
		slog.Error("Router.process: handler failed", "userID", resp.From, "error", err)
		reply = flow.Reply{Text: fallbackReply}
	}
	if err := r.deliver(ctx, resp.From, reply); err != nil {
		slog.Error("Router.process: failed to deliver reply", "userID", resp.From, "error", err)
		r.recordReceipt(models.Receipt{To: resp.From, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
	}
}

func (r *Router) handle(ctx context.Context, resp models.Response) (reply flow.Reply, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Router.handle: panic recovered", "userID", resp.From, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.handler.Handle(ctx, resp.From, resp.Body)
}

// deliver sends the image when there is one and the transport supports it,
// falling back to the text.
func (r *Router) deliver(ctx context.Context, to string, reply flow.Reply) error {
	if len(reply.Image) > 0 {
		if img, ok := r.svc.(ImageSender); ok {
			err := img.SendImage(ctx, to, reply.Image, reply.ImageCaption)
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrImageUnsupported) {
				slog.Warn("Router.deliver: image send failed, falling back to text", "to", to, "error", err)
			}
		}
	}
	if reply.Text == "" {
		return nil
	}
	return r.svc.SendMessage(ctx, to, reply.Text)
}
