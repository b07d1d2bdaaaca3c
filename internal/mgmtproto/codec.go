package mgmtproto

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/jbride/mujina/internal/mjerr"
)

// Wire layout: [id][opcode][len_lo][len_hi][err_code][payload...]. For
// requests err_code is always 0 and ignored by the receiver; responses set
// it to a nonzero protocol error code instead of a payload. Kept
// deliberately simple: this is a point-to-point link to a single
// microcontroller, not a shared bus.
const headerSize = 5

// encode writes p to w in the wire framing, with err_code 0 (requests never
// carry a protocol error).
func encode(w io.Writer, p Packet) error {
	return encodeFrame(w, p.ID, p.Opcode, 0, p.Payload)
}

// encodeResponse writes r to w in the wire framing; used by board-side test
// doubles that need to reply with a specific error code.
func encodeResponse(w io.Writer, r Response) error {
	return encodeFrame(w, r.ID, r.Opcode, r.ErrCode, r.Payload)
}

func encodeFrame(w io.Writer, id, opcode, errCode byte, payload []byte) error {
	header := make([]byte, headerSize)
	header[0] = id
	header[1] = opcode
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(payload)))
	header[4] = errCode
	if _, err := w.Write(header); err != nil {
		return mjerr.WrapIo(err, "mgmtproto: write header")
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return mjerr.WrapIo(err, "mgmtproto: write payload")
		}
	}
	return nil
}

// decode reads one Response from r.
func decode(r *bufio.Reader) (Response, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Response{}, mjerr.WrapIo(err, "mgmtproto: read header")
	}
	length := binary.LittleEndian.Uint16(header[2:4])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Response{}, mjerr.WrapIo(err, "mgmtproto: read payload")
		}
	}
	return Response{
		ID:      header[0],
		Opcode:  header[1],
		ErrCode: header[4],
		Payload: payload,
	}, nil
}
