package wire

import (
	"encoding/binary"
	"errors"
)

// Kind identifies a message's wire type. It is the first packed byte of
// every record, ahead of the kind-specific body.
type Kind uint8

const (
	KindClientHello Kind = iota + 1
	KindAccept
	KindReject
	KindExit
	KindRestart
	KindAlert
	KindIoBuffer
	KindChangeWindowSize
	KindCommandSuspend

	KindServerHello
	KindLogId
	KindCommitPoint
	KindError
)

// StreamID names one of the five I/O buffer streams a session may carry.
type StreamID uint8

const (
	StreamTTYIn StreamID = iota + 1
	StreamTTYOut
	StreamStdin
	StreamStdout
	StreamStderr
)

// TimeSpec mirrors the wire's (seconds, nanoseconds) pair used for
// submit/run times, delays, and commit points.
type TimeSpec struct {
	Sec  int64
	Nsec int32
}

// InfoPair is one key/value entry of an Accept/Reject/Alert info list.
type InfoPair struct {
	Key    string
	StrVal string
}

var errShortBuffer = errors.New("wire: short buffer")

// ClientHello carries no fields beyond its kind; it is stateless beyond
// being logged.
type ClientHello struct{}

// Accept is the client's declaration that a command was permitted to run.
type Accept struct {
	SubmitTime    TimeSpec
	Info          []InfoPair
	ExpectIOBufs  bool
}

// Reject is the client's declaration that a command was denied.
type Reject struct {
	Reason string
	Info   []InfoPair
}

// Exit reports a command's completion.
type Exit struct {
	ExitValue int32
	RunTime   TimeSpec
}

// Restart resumes an existing I/O log identified by LogID, used by
// clients reconnecting after a network blip.
type Restart struct {
	LogID      string
	ResumePoint TimeSpec
}

// Alert is an out-of-band notable event (e.g. a policy module warning).
type Alert struct {
	Reason string
	Info   []InfoPair
}

// IoBuffer carries one chunk of one of the five replayable streams.
type IoBuffer struct {
	Stream StreamID
	Delay  TimeSpec
	Data   []byte
}

// ChangeWindowSize reports a terminal resize.
type ChangeWindowSize struct {
	Rows, Cols uint16
}

// CommandSuspend reports a SIGTSTP/SIGCONT transition the client observed.
type CommandSuspend struct {
	Signal string
}

// ServerHello greets a newly accepted connection.
type ServerHello struct {
	ServerID string
}

// LogId tells the client where its I/O log was created, once.
type LogId struct {
	ID string
}

// CommitPoint acknowledges durability up to an elapsed time.
type CommitPoint struct {
	Elapsed TimeSpec
}

// Error terminates a session with a human-readable reason.
type Error struct {
	Reason string
}

func putString(dst []byte, s string) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(s)))
	dst = append(dst, l[:]...)
	return append(dst, s...)
}

func getString(buf []byte) (string, []byte, error) {
	if len(buf) < 4 {
		return "", nil, errShortBuffer
	}
	l := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]
	if uint32(len(buf)) < l {
		return "", nil, errShortBuffer
	}
	return string(buf[:l]), buf[l:], nil
}

func putTime(dst []byte, t TimeSpec) []byte {
	var b [12]byte
	binary.BigEndian.PutUint64(b[:8], uint64(t.Sec))
	binary.BigEndian.PutUint32(b[8:], uint32(t.Nsec))
	return append(dst, b[:]...)
}

func getTime(buf []byte) (TimeSpec, []byte, error) {
	if len(buf) < 12 {
		return TimeSpec{}, nil, errShortBuffer
	}
	t := TimeSpec{
		Sec:  int64(binary.BigEndian.Uint64(buf[:8])),
		Nsec: int32(binary.BigEndian.Uint32(buf[8:12])),
	}
	return t, buf[12:], nil
}

func putInfo(dst []byte, info []InfoPair) []byte {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(info)))
	dst = append(dst, n[:]...)
	for _, p := range info {
		dst = putString(dst, p.Key)
		dst = putString(dst, p.StrVal)
	}
	return dst
}

func getInfo(buf []byte) ([]InfoPair, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, errShortBuffer
	}
	n := binary.BigEndian.Uint32(buf[:4])
	buf = buf[4:]

	info := make([]InfoPair, 0, n)
	for i := uint32(0); i < n; i++ {
		var key, val string
		var err error

		key, buf, err = getString(buf)
		if err != nil {
			return nil, nil, err
		}
		val, buf, err = getString(buf)
		if err != nil {
			return nil, nil, err
		}
		info = append(info, InfoPair{Key: key, StrVal: val})
	}
	return info, buf, nil
}
