package peer

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/leechd/leechd/internal/bitfield"
	"github.com/leechd/leechd/internal/logger"
	"github.com/leechd/leechd/internal/messageid"
	"github.com/leechd/leechd/internal/peerprotocol"
)

type chokeMsg struct{}
type unchokeMsg struct{}
type interestedMsg struct{}
type notInterestedMsg struct{}
type haveMsg struct{ index uint32 }
type bitfieldMsg struct{ bf bitfield.BitField }
type requestMsg struct{ index, begin, length uint32 }
type blockMsg struct {
	index, begin uint32
	data         []byte
}
type cancelMsg struct{ index, begin, length uint32 }

// readLoop decodes framed messages off conn and delivers them to inboundC
// until the peer disconnects, sends something invalid, or closeC fires.
// It owns the read side of conn exclusively; nothing else may read from it.
func readLoop(conn net.Conn, log logger.Logger, inboundC chan<- interface{}, closeC chan struct{}) {
	defer close(inboundC)

	bitfieldSeen := false
	for {
		if err := conn.SetReadDeadline(time.Now().Add(connReadTimeout)); err != nil {
			return
		}
		length, err := peerprotocol.ReadFrameLength(conn)
		if err != nil {
			if err != io.EOF {
				log.Debugf("read error: %s", err)
			}
			return
		}
		if length == 0 {
			continue // keep-alive
		}

		var idByte [1]byte
		if _, err := io.ReadFull(conn, idByte[:]); err != nil {
			log.Debugf("read error: %s", err)
			return
		}
		id := messageid.MessageID(idByte[0])
		length--

		switch id {
		case messageid.Choke:
			deliver(inboundC, chokeMsg{}, closeC)
		case messageid.Unchoke:
			deliver(inboundC, unchokeMsg{}, closeC)
		case messageid.Interested:
			deliver(inboundC, interestedMsg{}, closeC)
		case messageid.NotInterested:
			deliver(inboundC, notInterestedMsg{}, closeC)
		case messageid.Have:
			var idx uint32
			if err := binary.Read(conn, binary.BigEndian, &idx); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			deliver(inboundC, haveMsg{idx}, closeC)
		case messageid.Bitfield:
			if bitfieldSeen {
				log.Error("peer sent a second bitfield message")
				return
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(conn, buf); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			bitfieldSeen = true
			deliver(inboundC, bitfieldMsg{bf: bitfield.NewBytes(buf, uint32(length)*8)}, closeC)
		case messageid.Request:
			var req struct{ Index, Begin, Length uint32 }
			if err := binary.Read(conn, binary.BigEndian, &req); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			deliver(inboundC, requestMsg{req.Index, req.Begin, req.Length}, closeC)
		case messageid.Cancel:
			var req struct{ Index, Begin, Length uint32 }
			if err := binary.Read(conn, binary.BigEndian, &req); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			deliver(inboundC, cancelMsg{req.Index, req.Begin, req.Length}, closeC)
		case messageid.Piece:
			var hdr struct{ Index, Begin uint32 }
			if err := binary.Read(conn, binary.BigEndian, &hdr); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			blockLen := length - 8
			if blockLen > peerprotocol.MaxAllowedBlockSize {
				log.Error("peer sent an oversized block")
				return
			}
			data := make([]byte, blockLen)
			if _, err := io.ReadFull(conn, data); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
			deliver(inboundC, blockMsg{hdr.Index, hdr.Begin, data}, closeC)
		default:
			if _, err := io.CopyN(io.Discard, conn, int64(length)); err != nil {
				log.Debugf("read error: %s", err)
				return
			}
		}
	}
}

func deliver(inboundC chan<- interface{}, m interface{}, closeC chan struct{}) {
	select {
	case inboundC <- m:
	case <-closeC:
	}
}
