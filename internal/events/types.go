package events

// Event type constants follow the format: domain.action

// Message events
const (
	EventTypeMessageSent     = "message.sent"
	EventTypeMessageEdited   = "message.edited"
	EventTypeMessageRecalled = "message.recalled"
	EventTypeMessageRead     = "message.read"
)

// Client-side handler method names pushed through the notification gateway.
const (
	MethodMessageSent             = "message-sent"
	MethodMessageSentConfirmation = "message-sent-confirmation"
	MethodMessageEdited           = "message-edited"
	MethodMessageRecalled         = "message-recalled"
	MethodMessageRead             = "message-read"
)

// Redis channel prefixes used by the gateway.
const (
	ChannelPrefixUser  = "channel:user:"
	ChannelPrefixGroup = "channel:group:"
)
