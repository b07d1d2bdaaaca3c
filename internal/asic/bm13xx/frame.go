// Package bm13xx implements the BM13xx ASIC chain serial frame protocol:
// command frames (CRC-5 protected) sent down the chain, work frames
// (CRC-16 protected) carrying hashing jobs, and the chip responses read
// back from the chain.
package bm13xx

// Command and response preambles. Commands flow host->chain as 0x55 0xAA;
// responses flow chain->host as 0xAA 0x55.
var (
	commandPreamble  = [2]byte{0x55, 0xAA}
	responsePreamble = [2]byte{0xAA, 0x55}
)

// Register identifies a BM13xx chip register.
type Register byte

const ChipAddress Register = 0

// CommandCode is the 4-bit command field of a command frame.
type CommandCode byte

const (
	CmdSetAddress          CommandCode = 0
	CmdWriteRegisterOrJob  CommandCode = 1
	CmdReadRegister        CommandCode = 2
	CmdChainInactive       CommandCode = 3
)

// frameType is the 2-bit type field distinguishing a register command from
// a work (job) frame.
type frameType byte

const (
	typeJob     frameType = 1
	typeCommand frameType = 2
)

// Command is a single command frame addressed to one or all chips on the
// chain.
type Command struct {
	All      bool
	Address  byte
	Code     CommandCode
	Register Register // meaningful for CmdReadRegister / CmdWriteRegisterOrJob
	Data     []byte   // register write payload, for CmdWriteRegisterOrJob
}

func commandField(t frameType, all bool, code CommandCode) byte {
	field := byte(t) << 5
	if all {
		field |= 0x10
	}
	field |= byte(code) & 0x0F
	return field
}

// Encode serializes c into a CRC-5-protected command frame.
func (c Command) Encode() []byte {
	var body []byte
	switch c.Code {
	case CmdReadRegister:
		body = []byte{c.Address, byte(c.Register)}
	case CmdSetAddress:
		body = []byte{c.Address}
	case CmdChainInactive:
		body = nil
	case CmdWriteRegisterOrJob:
		body = append([]byte{c.Address, byte(c.Register)}, c.Data...)
	}

	field := commandField(typeCommand, c.All, c.Code)
	length := byte(len(body) + 3) // cmd_field + length + body + crc

	frame := make([]byte, 0, 2+2+len(body)+1)
	frame = append(frame, commandPreamble[0], commandPreamble[1])
	frame = append(frame, field, length)
	frame = append(frame, body...)
	crc := CRC5(frame[2:])
	frame = append(frame, crc)
	return frame
}

// WorkFrame is a CRC-16-protected frame carrying a hashing job down the
// chain to a specific chip (or broadcast to all chips).
type WorkFrame struct {
	All     bool
	Address byte
	WorkID  byte
	Job     []byte // midstate + remaining header bytes, chip-format specific
}

// Encode serializes w into a CRC-16-protected work frame.
func (w WorkFrame) Encode() []byte {
	field := commandField(typeJob, w.All, CmdWriteRegisterOrJob)
	body := append([]byte{w.Address, w.WorkID}, w.Job...)
	length := len(body) + 4 // cmd_field + length(1 byte) + body + crc(2 bytes)

	frame := make([]byte, 0, 2+1+1+len(body)+2)
	frame = append(frame, commandPreamble[0], commandPreamble[1])
	frame = append(frame, field)
	frame = append(frame, byte(length))
	frame = append(frame, body...)
	crc := CRC16(frame[2:])
	frame = append(frame, byte(crc>>8), byte(crc))
	return frame
}

// Response is a decoded chip response frame: a register read-back or a
// nonce report. CRC validity is returned as data, never as an error,
// since a corrupted response on a noisy chain is an expected operating
// condition the caller must be able to observe and count, not something
// that should look like a transport failure.
type Response struct {
	Raw      []byte
	CRCValid bool
}

// DecodeResponse scans data for the response preamble and validates the
// frame's trailing CRC-5. It returns the decoded frame and whether the
// checksum matched; callers decide what to do with a CRC failure (usually:
// count it and discard the frame).
func DecodeResponse(data []byte) (Response, bool) {
	idx := indexPreamble(data, responsePreamble)
	if idx < 0 {
		return Response{}, false
	}
	frame := data[idx:]
	if len(frame) < 2+2 {
		return Response{}, false
	}
	length := int(frame[3])
	total := 2 + length
	if len(frame) < total {
		return Response{}, false
	}
	frame = frame[:total]
	crcBody := frame[2 : total-1]
	expected := frame[total-1]
	valid := CRC5(crcBody) == expected
	return Response{Raw: frame, CRCValid: valid}, true
}

// NonceResponse is a decoded nonce-report body: the candidate nonce a chip
// found, the version bits it rolled to find it (meaningful only when the
// job's version mask is nonzero), and which outstanding work slot it
// answers.
type NonceResponse struct {
	Nonce       uint32
	VersionBits uint32
	WorkID      byte
}

// nonceBodyLen is nonce(4) + version-bits(4) + work_id(1), little-endian.
const nonceBodyLen = 9

// DecodeNonce extracts nonce-report fields from an already CRC-validated
// Response frame. It does not itself check CRCValid; a caller that wants to
// discard corrupt frames checks that first.
func DecodeNonce(resp Response) (NonceResponse, bool) {
	frame := resp.Raw
	if len(frame) < 4+nonceBodyLen+1 { // preamble+field+length, body, crc
		return NonceResponse{}, false
	}
	body := frame[4 : len(frame)-1]
	if len(body) != nonceBodyLen {
		return NonceResponse{}, false
	}
	nonce := uint32(body[0]) | uint32(body[1])<<8 | uint32(body[2])<<16 | uint32(body[3])<<24
	versionBits := uint32(body[4]) | uint32(body[5])<<8 | uint32(body[6])<<16 | uint32(body[7])<<24
	return NonceResponse{Nonce: nonce, VersionBits: versionBits, WorkID: body[8]}, true
}

func indexPreamble(data []byte, preamble [2]byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == preamble[0] && data[i+1] == preamble[1] {
			return i
		}
	}
	return -1
}
