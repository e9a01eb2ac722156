package peer

import (
	"encoding/binary"
	"net"

	"github.com/juju/ratelimit"

	"github.com/leechd/leechd/internal/logger"
	"github.com/leechd/leechd/internal/messageid"
	"github.com/leechd/leechd/internal/peerprotocol"
)

// pieceReply is a queued response to a request, kept distinct from the
// typed Message values so the queue can rate-limit only piece payloads.
type pieceReply struct {
	index, begin uint32
	data         []byte
}

// writer serializes every outgoing message through a single FIFO so replies
// are never reordered ahead of control messages like choke/unchoke, while
// still letting callers enqueue from the session's goroutine without
// blocking on the network.
type writer struct {
	conn   net.Conn
	log    logger.Logger
	upload *ratelimit.Bucket

	queueC chan interface{}
	writeC chan interface{}
	queue  []interface{}
}

func newWriter(conn net.Conn, log logger.Logger, upload *ratelimit.Bucket) *writer {
	return &writer{
		conn:   conn,
		log:    log,
		upload: upload,
		queueC: make(chan interface{}),
		writeC: make(chan interface{}),
	}
}

func (w *writer) send(msg peerprotocol.Message, closeC chan struct{}) {
	select {
	case w.queueC <- msg:
	case <-closeC:
	}
}

func (w *writer) sendPiece(index, begin uint32, data []byte, closeC chan struct{}) {
	select {
	case w.queueC <- pieceReply{index, begin, data}:
	case <-closeC:
	}
}

func (w *writer) sendKeepAlive(closeC chan struct{}) {
	select {
	case w.queueC <- keepAlive{}:
	case <-closeC:
	}
}

// cancelReq asks run to drop a not-yet-sent piece reply matching index/begin
// from the queue. It does nothing if the reply already went out; that is
// within protocol spec since cancel is advisory.
type cancelReq struct{ index, begin uint32 }

// cancel requests that a queued piece reply for req be dropped. The actual
// queue mutation happens inside run, the only goroutine that ever touches
// w.queue, so this is safe to call from any goroutine.
func (w *writer) cancel(req peerprotocol.RequestMessage, closeC chan struct{}) {
	select {
	case w.queueC <- cancelReq{req.Index, req.Begin}:
	case <-closeC:
	}
}

type keepAlive struct{}

// run pumps the FIFO: queueC feeds the queue, the queue head is offered on
// writeC, and a second goroutine (ioWriter) does the actual blocking I/O so
// a stalled connection never stalls message acceptance. run is the sole
// owner of w.queue; every other goroutine reaches it only through queueC.
func (w *writer) run(closeC chan struct{}) {
	go w.ioWriter(closeC)
	for {
		if len(w.queue) == 0 {
			select {
			case msg := <-w.queueC:
				w.enqueue(msg)
			case <-closeC:
				return
			}
			continue
		}
		select {
		case msg := <-w.queueC:
			w.enqueue(msg)
		case w.writeC <- w.queue[0]:
			w.queue = w.queue[1:]
		case <-closeC:
			return
		}
	}
}

// enqueue is only ever called from run. A cancelReq mutates the queue
// in place instead of being appended to it.
func (w *writer) enqueue(msg interface{}) {
	c, ok := msg.(cancelReq)
	if !ok {
		w.queue = append(w.queue, msg)
		return
	}
	out := w.queue[:0]
	for _, m := range w.queue {
		if pr, ok := m.(pieceReply); ok && pr.index == c.index && pr.begin == c.begin {
			continue
		}
		out = append(out, m)
	}
	w.queue = out
}

func (w *writer) ioWriter(closeC chan struct{}) {
	for {
		select {
		case msg := <-w.writeC:
			if err := w.writeOne(msg); err != nil {
				w.log.Debugf("write error: %s", err)
				w.conn.Close()
				return
			}
		case <-closeC:
			return
		}
	}
}

func (w *writer) writeOne(msg interface{}) error {
	switch m := msg.(type) {
	case keepAlive:
		return peerprotocol.WriteKeepAlive(w.conn)
	case pieceReply:
		if w.upload != nil {
			w.upload.Wait(int64(len(m.data)))
		}
		header := make([]byte, 8)
		binary.BigEndian.PutUint32(header[0:4], m.index)
		binary.BigEndian.PutUint32(header[4:8], m.begin)
		payload := append(header, m.data...)
		var frameHeader [4]byte
		binary.BigEndian.PutUint32(frameHeader[:], uint32(1+len(payload)))
		if _, err := w.conn.Write(frameHeader[:]); err != nil {
			return err
		}
		if _, err := w.conn.Write([]byte{byte(messageid.Piece)}); err != nil {
			return err
		}
		_, err := w.conn.Write(payload)
		return err
	case peerprotocol.Message:
		return peerprotocol.WriteFrame(w.conn, m)
	default:
		return nil
	}
}
