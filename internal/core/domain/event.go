package domain

// EventKind classifies inbound transport events.
type EventKind string

const (
	KindText     EventKind = "text"
	KindDocument EventKind = "document"
	KindCommand  EventKind = "command"
)

// Commands understood by the conversation router. The transport strips the
// leading slash and any bot-name suffix before handing the event over.
const (
	CommandStart  = "start"
	CommandUpload = "upload"
	CommandDone   = "done"
	CommandCancel = "cancel"
)

// Event is one inbound unit of work for a single session. Exactly one of
// Text, Document or Command is meaningful depending on Kind. Token carries an
// echoed menu choice token when the transport supports them; it takes
// precedence over Text during resolution.
type Event struct {
	Identity string
	Kind     EventKind
	Text     string
	Token    string
	Command  string
	Document *DocumentDraft
}
