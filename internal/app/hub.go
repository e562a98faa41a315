package app

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/trylia/internal/tryon"
)

// HistorySize is the number of recent frame results kept for charts.
const HistorySize = 300

// Frame is one encoded output frame.
type Frame struct {
	Seq     uint64
	JPEG    []byte
	Result  tryon.Result
	Created time.Time
}

// Hub keeps the most recent output frame for any number of readers.
// Publishing never blocks: a new frame replaces the previous one whether or
// not it was read.
type Hub struct {
	mu      sync.Mutex
	latest  Frame
	notify  chan struct{}
	history []tryon.Result

	published atomic.Uint64
	dropped   atomic.Uint64
	reads     atomic.Uint64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{notify: make(chan struct{})}
}

// Emit encodes frame as JPEG and publishes it. It implements tryon.Sink.
func (h *Hub) Emit(frame *gocv.Mat, res tryon.Result) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		log.Printf("Error encoding frame %d: %v", res.Frame, err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	h.Publish(data, res)
}

// Publish stores an already encoded frame and wakes waiting readers.
func (h *Hub) Publish(jpeg []byte, res tryon.Result) {
	h.mu.Lock()
	if h.latest.Seq > 0 && h.reads.Swap(0) == 0 {
		h.dropped.Add(1)
	}
	h.latest = Frame{
		Seq:     h.published.Add(1),
		JPEG:    jpeg,
		Result:  res,
		Created: time.Now(),
	}
	if len(h.history) == HistorySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:HistorySize-1]
	}
	h.history = append(h.history, res)
	close(h.notify)
	h.notify = make(chan struct{})
	h.mu.Unlock()
}

// History returns the results of the most recent frames, oldest first.
func (h *Hub) History() []tryon.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]tryon.Result(nil), h.history...)
}

// Summary summarizes the frames in History.
func (h *Hub) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Summarize(h.history)
}

// Latest returns the most recent frame, if any.
func (h *Hub) Latest() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.latest.Seq > 0
}

// Next blocks until a frame newer than after is published or ctx is done.
// Readers that fall behind skip straight to the newest frame.
func (h *Hub) Next(ctx context.Context, after uint64) (Frame, error) {
	for {
		h.mu.Lock()
		f, ch := h.latest, h.notify
		h.mu.Unlock()

		if f.Seq > after {
			h.reads.Add(1)
			return f, nil
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-ch:
		}
	}
}

// HubStats counts published frames and frames nobody read.
type HubStats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
}

// Stats returns the publish counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Published: h.published.Load(),
		Dropped:   h.dropped.Load(),
	}
}
