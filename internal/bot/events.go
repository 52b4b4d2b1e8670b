package bot

// EventType enumerates the edge-triggered lifecycle events a bot emits.
type EventType int

const (
	// EventReady fires on the transition into the ready state.
	EventReady EventType = iota
	// EventUnready fires on the transition out of the ready state.
	EventUnready
	// EventLoginFailed fires when login is abandoned (non-retryable error or
	// retry budget exhausted). The bot is dead afterwards.
	EventLoginFailed
	// EventGCReconnectFailed fires when the GC reattach budget is exhausted.
	EventGCReconnectFailed
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventUnready:
		return "unready"
	case EventLoginFailed:
		return "loginFailed"
	case EventGCReconnectFailed:
		return "gcReconnectFailed"
	default:
		return "unknown"
	}
}

// Event is a bot lifecycle notification. Err is set for EventLoginFailed.
type Event struct {
	Type     EventType
	Username string
	BotIndex int
	Err      error
}

// EventFunc receives bot events. It is invoked synchronously from bot
// context; handlers must stay lightweight and must not call back into the
// emitting bot.
type EventFunc func(Event)
