package qseries

import (
	"encoding/binary"
	"fmt"
	"math"
)

// encodeRequest builds a request: the command code followed by up to two
// signed 32-bit arguments.
func encodeRequest(cmd Command, args ...int32) []byte {
	buf := make([]byte, 4+4*len(args))
	binary.LittleEndian.PutUint32(buf, uint32(cmd))
	for i, a := range args {
		binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(a))
	}
	return buf
}

// DecodeRequest splits a request into its command code and arguments.
func DecodeRequest(req []byte) (Command, []int32, error) {
	if len(req) < 4 || len(req)%4 != 0 {
		return 0, nil, fmt.Errorf("%w: request of %d bytes", ErrUnexpectedLength, len(req))
	}
	cmd := Command(binary.LittleEndian.Uint32(req))
	var args []int32
	for p := 4; p < len(req); p += 4 {
		args = append(args, int32(binary.LittleEndian.Uint32(req[p:])))
	}
	return cmd, args, nil
}

// EncodeResponse builds a response with the given return code and payload.
func EncodeResponse(code ReturnCode, payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	buf[0] = byte(code)
	copy(buf[4:], payload)
	return buf
}

// decodeResponse checks the response header and returns the payload.
func decodeResponse(cmd Command, rx []byte) ([]byte, error) {
	if len(rx) < 4 {
		return nil, fmt.Errorf("%s: %w: %d bytes", cmd, ErrShortResponse, len(rx))
	}
	if code := ReturnCode(rx[0]); code != RetOK {
		return nil, &DeviceError{Command: cmd, Code: code}
	}
	return rx[4:], nil
}

func payloadInt(cmd Command, payload []byte) (int32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%s: %w: %d payload bytes", cmd, ErrShortResponse, len(payload))
	}
	return int32(binary.LittleEndian.Uint32(payload)), nil
}

func payloadFloat(cmd Command, payload []byte) (float32, error) {
	if len(payload) < 4 {
		return 0, fmt.Errorf("%s: %w: %d payload bytes", cmd, ErrShortResponse, len(payload))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(payload)), nil
}

// Float32s decodes little-endian float32 values.
func Float32s(data []byte) []float64 {
	out := make([]float64, len(data)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
	}
	return out
}

// AppendFloat32s appends values as little-endian float32.
func AppendFloat32s(b []byte, values ...float64) []byte {
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(v)))
	}
	return b
}

// AppendInt32 appends v as a little-endian int32.
func AppendInt32(b []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(b, uint32(v))
}
