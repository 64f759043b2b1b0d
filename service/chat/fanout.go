package chat

import (
	"sync"

	"IMGateway/logger"
	"IMGateway/tools/safe"
)

type fanoutJob struct {
	conn    *WsConn
	payload []byte
}

// Fanout is a small worker pool that enqueues outbound frames onto
// connection send queues. Enqueueing never blocks: a client whose
// queue is full has the frame dropped rather than stalling the pool.
type Fanout struct {
	jobs     chan fanoutJob
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewFanout(workers, queueLen int) *Fanout {
	if workers <= 0 {
		workers = 4
	}
	if queueLen <= 0 {
		queueLen = 1024
	}
	f := &Fanout{jobs: make(chan fanoutJob, queueLen)}
	for i := 0; i < workers; i++ {
		f.wg.Add(1)
		safe.SafeGo(func() {
			defer f.wg.Done()
			for job := range f.jobs {
				job.conn.Enqueue(job.payload)
			}
		})
	}
	return f
}

// Broadcast schedules one payload for every given connection.
func (f *Fanout) Broadcast(conns []*WsConn, payload []byte) {
	for _, c := range conns {
		if c == nil {
			continue
		}
		select {
		case f.jobs <- fanoutJob{conn: c, payload: payload}:
		default:
			// pool saturated, push inline instead of blocking the caller
			c.Enqueue(payload)
		}
	}
}

func (f *Fanout) Close() {
	f.stopOnce.Do(func() { close(f.jobs) })
	f.wg.Wait()
}

// Enqueue delivers into the connection's send queue without blocking.
func (c *WsConn) Enqueue(payload []byte) {
	select {
	case c.SendChan <- payload:
	default:
		logger.Warnf("send queue full, dropping frame conn=%s user=%s", c.ID, c.UserID)
	}
}
