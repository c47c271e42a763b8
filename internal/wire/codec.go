package wire

import (
	"fmt"
)

// Message is any value packed by Pack and produced by Unpack.
type Message interface {
	kind() Kind
}

func (ClientHello) kind() Kind      { return KindClientHello }
func (Accept) kind() Kind           { return KindAccept }
func (Reject) kind() Kind           { return KindReject }
func (Exit) kind() Kind             { return KindExit }
func (Restart) kind() Kind          { return KindRestart }
func (Alert) kind() Kind            { return KindAlert }
func (IoBuffer) kind() Kind         { return KindIoBuffer }
func (ChangeWindowSize) kind() Kind { return KindChangeWindowSize }
func (CommandSuspend) kind() Kind   { return KindCommandSuspend }
func (ServerHello) kind() Kind      { return KindServerHello }
func (LogId) kind() Kind            { return KindLogId }
func (CommitPoint) kind() Kind      { return KindCommitPoint }
func (Error) kind() Kind            { return KindError }

// Pack returns the packed body of m (kind byte + fields), ready to be
// framed by Encode.
func Pack(m Message) ([]byte, error) {
	dst := []byte{byte(m.kind())}

	switch v := m.(type) {
	case ClientHello:
		return dst, nil
	case Accept:
		dst = putTime(dst, v.SubmitTime)
		dst = putInfo(dst, v.Info)
		if v.ExpectIOBufs {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
		return dst, nil
	case Reject:
		dst = putString(dst, v.Reason)
		dst = putInfo(dst, v.Info)
		return dst, nil
	case Exit:
		var e [4]byte
		putInt32(e[:], v.ExitValue)
		dst = append(dst, e[:]...)
		dst = putTime(dst, v.RunTime)
		return dst, nil
	case Restart:
		dst = putString(dst, v.LogID)
		dst = putTime(dst, v.ResumePoint)
		return dst, nil
	case Alert:
		dst = putString(dst, v.Reason)
		dst = putInfo(dst, v.Info)
		return dst, nil
	case IoBuffer:
		dst = append(dst, byte(v.Stream))
		dst = putTime(dst, v.Delay)
		dst = putString(dst, string(v.Data))
		return dst, nil
	case ChangeWindowSize:
		var b [4]byte
		putUint16(b[0:2], v.Rows)
		putUint16(b[2:4], v.Cols)
		dst = append(dst, b[:]...)
		return dst, nil
	case CommandSuspend:
		dst = putString(dst, v.Signal)
		return dst, nil
	case ServerHello:
		dst = putString(dst, v.ServerID)
		return dst, nil
	case LogId:
		dst = putString(dst, v.ID)
		return dst, nil
	case CommitPoint:
		dst = putTime(dst, v.Elapsed)
		return dst, nil
	case Error:
		dst = putString(dst, v.Reason)
		return dst, nil
	default:
		return nil, fmt.Errorf("wire: unpackable message type %T", m)
	}
}

// Unpack parses a packed body (as produced by Pack, or read off the
// wire) into its concrete Message.
func Unpack(body []byte) (Message, error) {
	if len(body) < 1 {
		return nil, errShortBuffer
	}
	k := Kind(body[0])
	buf := body[1:]

	var err error
	switch k {
	case KindClientHello:
		return ClientHello{}, nil
	case KindAccept:
		var a Accept
		if a.SubmitTime, buf, err = getTime(buf); err != nil {
			return nil, err
		}
		if a.Info, buf, err = getInfo(buf); err != nil {
			return nil, err
		}
		if len(buf) < 1 {
			return nil, errShortBuffer
		}
		a.ExpectIOBufs = buf[0] != 0
		return a, nil
	case KindReject:
		var r Reject
		if r.Reason, buf, err = getString(buf); err != nil {
			return nil, err
		}
		if r.Info, _, err = getInfo(buf); err != nil {
			return nil, err
		}
		return r, nil
	case KindExit:
		var e Exit
		if len(buf) < 4 {
			return nil, errShortBuffer
		}
		e.ExitValue = getInt32(buf[:4])
		if e.RunTime, _, err = getTime(buf[4:]); err != nil {
			return nil, err
		}
		return e, nil
	case KindRestart:
		var r Restart
		if r.LogID, buf, err = getString(buf); err != nil {
			return nil, err
		}
		if r.ResumePoint, _, err = getTime(buf); err != nil {
			return nil, err
		}
		return r, nil
	case KindAlert:
		var a Alert
		if a.Reason, buf, err = getString(buf); err != nil {
			return nil, err
		}
		if a.Info, _, err = getInfo(buf); err != nil {
			return nil, err
		}
		return a, nil
	case KindIoBuffer:
		var io IoBuffer
		if len(buf) < 1 {
			return nil, errShortBuffer
		}
		io.Stream = StreamID(buf[0])
		buf = buf[1:]
		if io.Delay, buf, err = getTime(buf); err != nil {
			return nil, err
		}
		var data string
		if data, _, err = getString(buf); err != nil {
			return nil, err
		}
		io.Data = []byte(data)
		return io, nil
	case KindChangeWindowSize:
		var c ChangeWindowSize
		if len(buf) < 4 {
			return nil, errShortBuffer
		}
		c.Rows = getUint16(buf[0:2])
		c.Cols = getUint16(buf[2:4])
		return c, nil
	case KindCommandSuspend:
		var c CommandSuspend
		if c.Signal, _, err = getString(buf); err != nil {
			return nil, err
		}
		return c, nil
	case KindServerHello:
		var s ServerHello
		if s.ServerID, _, err = getString(buf); err != nil {
			return nil, err
		}
		return s, nil
	case KindLogId:
		var l LogId
		if l.ID, _, err = getString(buf); err != nil {
			return nil, err
		}
		return l, nil
	case KindCommitPoint:
		var c CommitPoint
		if c.Elapsed, _, err = getTime(buf); err != nil {
			return nil, err
		}
		return c, nil
	case KindError:
		var e Error
		if e.Reason, _, err = getString(buf); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("wire: unknown message kind %d", k)
	}
}

func putInt32(dst []byte, v int32) {
	u := uint32(v)
	dst[0] = byte(u >> 24)
	dst[1] = byte(u >> 16)
	dst[2] = byte(u >> 8)
	dst[3] = byte(u)
}

func getInt32(buf []byte) int32 {
	u := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return int32(u)
}

func putUint16(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
}

func getUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}
