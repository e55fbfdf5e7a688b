package wire

// MessageType is the leading byte of every wire message, selecting how
// the remaining bytes are framed and decoded.
type MessageType byte

const (
	// TypeIntent frames a tick-stamped client command.
	TypeIntent MessageType = 0x01
	// TypeSnapshot frames a server-authoritative state delta.
	TypeSnapshot MessageType = 0x02
	// TypeHeartbeat frames an empty keep-alive.
	TypeHeartbeat MessageType = 0x03
	// TypeCustom frames a one-shot bidirectional RPC event.
	TypeCustom MessageType = 0xFF
)

func (t MessageType) String() string {
	switch t {
	case TypeIntent:
		return "INTENT"
	case TypeSnapshot:
		return "SNAPSHOT"
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeCustom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}
