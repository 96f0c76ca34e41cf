package grbl

import (
	"strconv"
	"strings"
)

// MessageType is the kind of a line received from the controller.
type MessageType int

// Message types.
const (
	TypeOther    MessageType = iota // anything unrecognized, e.g. echo or startup block output
	TypeAck                         // "ok"
	TypeError                       // "error:N", or "error: text" on GRBL 0.9
	TypeAlarm                       // "ALARM:N", or "ALARM: text" on GRBL 0.9
	TypeStatus                      // "<...>"
	TypeWelcome                     // "Grbl 1.1h ['$' for help]"
	TypeFeedback                    // "[MSG:...]", "[GC:...]", "[PRB:...]"
	TypeSetting                     // "$110=500.000"
)

func (t MessageType) String() string {
	switch t {
	case TypeAck:
		return "ack"
	case TypeError:
		return "error"
	case TypeAlarm:
		return "alarm"
	case TypeStatus:
		return "status"
	case TypeWelcome:
		return "welcome"
	case TypeFeedback:
		return "feedback"
	case TypeSetting:
		return "setting"
	default:
		return "other"
	}
}

// Classify returns the type of a single response line. Surrounding
// whitespace, including a trailing carriage return, is ignored.
func Classify(line string) MessageType {
	line = strings.TrimSpace(line)

	switch {
	case line == "ok":
		return TypeAck
	case strings.HasPrefix(line, "error:"):
		return TypeError
	case strings.HasPrefix(line, "ALARM:"):
		return TypeAlarm
	case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
		return TypeStatus
	case strings.HasPrefix(line, "Grbl "):
		return TypeWelcome
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return TypeFeedback
	case isSetting(line):
		return TypeSetting
	default:
		return TypeOther
	}
}

func isSetting(line string) bool {
	if len(line) < 3 || line[0] != '$' {
		return false
	}
	eq := strings.IndexByte(line, '=')
	if eq < 2 {
		return false
	}
	_, err := strconv.Atoi(line[1:eq])

	return err == nil
}

// Message is a classified response line.
type Message struct {
	Type MessageType
	// Raw is the trimmed line.
	Raw string
	// Code is the numeric code of TypeError and TypeAlarm messages, or -1
	// when the controller reported a text instead.
	Code int
	// Text is the payload: the version of a welcome banner, the content of a
	// feedback message, the value of a setting or the text of a 0.9 error.
	Text string
	// Setting is the setting number of TypeSetting messages.
	Setting int
	// Status is the decoded report of TypeStatus messages, valid when Err is nil.
	Status StatusReport
	// Err holds the status decoding failure, if any.
	Err error
}

// ParseMessage classifies line and decodes its payload.
func ParseMessage(line string) Message {
	line = strings.TrimSpace(line)
	msg := Message{Type: Classify(line), Raw: line, Code: -1}

	switch msg.Type {
	case TypeError:
		msg.Code, msg.Text = parseCode(line[len("error:"):])
	case TypeAlarm:
		msg.Code, msg.Text = parseCode(line[len("ALARM:"):])
	case TypeStatus:
		msg.Status, msg.Err = ParseStatus(line)
	case TypeWelcome:
		msg.Text = strings.Fields(line)[1]
	case TypeFeedback:
		msg.Text = line[1 : len(line)-1]
	case TypeSetting:
		eq := strings.IndexByte(line, '=')
		msg.Setting, _ = strconv.Atoi(line[1:eq])
		msg.Text = line[eq+1:]
	}

	return msg
}

func parseCode(s string) (int, string) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, ""
	}

	return -1, s
}
