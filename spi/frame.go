// Package spi implements the Rock serial register bus: the 32-bit frame
// codec, the transmit driver, and the receive monitor. Frames are
// transmitted MSB first over 32 sclk cycles while cs_n is low.
package spi

import (
	"errors"
	"fmt"

	"github.com/rocklab/rocktb/bus"
)

// NBits is the length of every frame in bits.
const NBits = 32

// Request frame field positions (bit 31 transmitted first):
// chip-address[31:29] | write-flag[28] | broadcast[27] |
// register-address[26:19] | register-data[18:3] | reserved[2:1] | stop[0].
const (
	reqChipAddrShift = 29
	reqWriteFlagBit  = 28
	reqBroadcastBit  = 27
	reqAddrShift     = 19
	reqDataShift     = 3
	reqStopBit       = 0
)

// Response frame field positions:
// zeros[31:26] | one[25] | chip-address-echo[24:22] | write-flag-echo[21] |
// broadcast-echo[20] | register-data[19:4] | status[3] | zeros[2:0].
const (
	respOneBit        = 25
	respChipAddrShift = 22
	respWriteFlagBit  = 21
	respBroadcastBit  = 20
	respDataShift     = 4
	respStatusBit     = 3
)

// Status is the response frame's status field.
type Status uint8

const (
	// StatusOk reports a successful register access.
	StatusOk Status = 0
	// StatusError reports that the chip rejected the access.
	StatusError Status = 1
)

// String returns the name the chip documentation uses.
func (s Status) String() string {
	if s == StatusOk {
		return "Ok"
	}
	return "Error"
}

// Protocol violations detected by the monitor. All of them are fatal.
var (
	// ErrUndefinedBit reports a sampled bit that is neither 0 nor 1.
	ErrUndefinedBit = errors.New("spi: sampled undefined bit")

	// ErrChipAddrMismatch reports a response whose chip-address echo
	// differs from the request.
	ErrChipAddrMismatch = errors.New("spi: chip address mismatch")

	// ErrBadStatus reports a non-Ok response status.
	ErrBadStatus = errors.New("spi: error status in response")
)

// Bit extracts bit i of a frame word.
func Bit(word uint32, i int) uint32 {
	return (word >> uint(i)) & 1
}

// RequestFields is the decoded content of a request frame.
type RequestFields struct {
	ChipAddr  uint8
	Dir       bus.Direction
	Broadcast bool
	Addr      uint8
	Data      uint16
	Stop      bool
}

// EncodeRequest assembles the 32-bit request frame word.
func EncodeRequest(chipAddr uint8, trx *bus.Transaction) uint32 {
	var wr uint32
	if trx.Dir == bus.Write {
		wr = 1
	}
	word := uint32(chipAddr&0x7) << reqChipAddrShift
	word |= wr << reqWriteFlagBit
	word |= uint32(trx.Addr) << reqAddrShift
	word |= uint32(trx.Data) << reqDataShift
	word |= 1 << reqStopBit
	return word
}

// DecodeRequest splits a request frame word into its fields.
func DecodeRequest(word uint32) RequestFields {
	f := RequestFields{
		ChipAddr:  uint8(word >> reqChipAddrShift & 0x7),
		Broadcast: Bit(word, reqBroadcastBit) == 1,
		Addr:      uint8(word >> reqAddrShift & 0xFF),
		Data:      uint16(word >> reqDataShift & 0xFFFF),
		Stop:      Bit(word, reqStopBit) == 1,
	}
	if Bit(word, reqWriteFlagBit) == 1 {
		f.Dir = bus.Write
	} else {
		f.Dir = bus.Read
	}
	return f
}

// ResponseFields is the decoded content of a response frame.
type ResponseFields struct {
	One       bool
	ChipAddr  uint8
	Dir       bus.Direction
	Broadcast bool
	Data      uint16
	Status    Status
}

// EncodeResponse assembles the 32-bit response frame word.
func EncodeResponse(chipAddr uint8, dir bus.Direction, data uint16, st Status) uint32 {
	var wr uint32
	if dir == bus.Write {
		wr = 1
	}
	word := uint32(1) << respOneBit
	word |= uint32(chipAddr&0x7) << respChipAddrShift
	word |= wr << respWriteFlagBit
	word |= uint32(data) << respDataShift
	word |= uint32(st&1) << respStatusBit
	return word
}

// DecodeResponse splits a response frame word into its fields.
func DecodeResponse(word uint32) ResponseFields {
	f := ResponseFields{
		One:       Bit(word, respOneBit) == 1,
		ChipAddr:  uint8(word >> respChipAddrShift & 0x7),
		Broadcast: Bit(word, respBroadcastBit) == 1,
		Data:      uint16(word >> respDataShift & 0xFFFF),
		Status:    Status(Bit(word, respStatusBit)),
	}
	if Bit(word, respWriteFlagBit) == 1 {
		f.Dir = bus.Write
	} else {
		f.Dir = bus.Read
	}
	return f
}

// fieldName names the request field a bit index belongs to, for debug
// logging during transmission.
func fieldName(i int) string {
	switch {
	case i >= reqChipAddrShift:
		return "chip addr"
	case i == reqWriteFlagBit:
		return "wr flag"
	case i == reqBroadcastBit:
		return "broadcast"
	case i >= reqAddrShift:
		return "reg addr"
	case i >= reqDataShift:
		return "reg data"
	case i >= 1:
		return "reserved"
	case i == 0:
		return "stop"
	default:
		return fmt.Sprintf("bit %d", i)
	}
}
