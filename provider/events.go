// Package provider defines the unified streaming event vocabulary shared by
// all agent backend adapters, the Provider contract they implement, and the
// process-wide registry that resolves adapters by name.
//
// Every adapter translates its backend's native incremental protocol into
// exactly this closed set of event variants. Consumers (the session registry,
// the output streamer) depend only on these types, never on a backend's
// native shapes. Adding a backend means writing one adapter, not touching
// the consumers.
package provider

// EventType discriminates between event kinds.
type EventType int

const (
	// EventTypeText fires for streaming assistant text chunks.
	EventTypeText EventType = iota
	// EventTypeReasoning fires for chain-of-thought/reasoning chunks.
	EventTypeReasoning
	// EventTypeToolStart fires when a tool begins execution.
	EventTypeToolStart
	// EventTypeToolResult fires when a tool invocation completes.
	EventTypeToolResult
	// EventTypeAskUser fires when the backend asks the user a structured question.
	EventTypeAskUser
	// EventTypeTask fires for structured task-board mutations.
	EventTypeTask
	// EventTypeTodoList fires when the backend replaces its todo list.
	EventTypeTodoList
	// EventTypeCommand fires for shell command execution updates.
	EventTypeCommand
	// EventTypeFileChange fires when the backend creates, edits or deletes a file.
	EventTypeFileChange
	// EventTypeImageFile fires when the backend produces an image on disk.
	EventTypeImageFile
	// EventTypeSessionInit carries the backend's resume token as soon as known.
	EventTypeSessionInit
	// EventTypeResult fires once per turn with the final outcome.
	EventTypeResult
	// EventTypeError fires on adapter or backend errors.
	EventTypeError
)

// Event is the interface for all unified events.
type Event interface {
	Type() EventType
}

// TextEvent contains a streaming assistant text chunk.
type TextEvent struct {
	Text string
}

// Type returns the event type.
func (e TextEvent) Type() EventType { return EventTypeText }

// ReasoningEvent contains a reasoning/thinking chunk.
type ReasoningEvent struct {
	Text string
}

// Type returns the event type.
func (e ReasoningEvent) Type() EventType { return EventTypeReasoning }

// ToolStartEvent fires when a tool begins execution.
type ToolStartEvent struct {
	Input map[string]interface{}
	ID    string
	Name  string
}

// Type returns the event type.
func (e ToolStartEvent) Type() EventType { return EventTypeToolStart }

// ToolResultEvent fires when a tool invocation completes.
type ToolResultEvent struct {
	Content interface{}
	ID      string
	Name    string
	IsError bool
}

// Type returns the event type.
func (e ToolResultEvent) Type() EventType { return EventTypeToolResult }

// Question is one structured question of an ask-user event.
type Question struct {
	Text        string
	Header      string
	Options     []string
	MultiSelect bool
}

// AskUserEvent fires when the backend asks the user one or more structured
// multi-choice questions. When Reply is non-nil the originating turn is still
// live and blocked on the answer; the caller sends the answers (keyed by
// question text) to unblock it. A nil Reply means the turn has ended and
// answers must be submitted as a fresh prompt.
type AskUserEvent struct {
	Reply     chan<- map[string]string
	Questions []Question
}

// Type returns the event type.
func (e AskUserEvent) Type() EventType { return EventTypeAskUser }

// TaskStatus is the lifecycle state of a task-board entry.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskEvent fires for a single task-board mutation.
type TaskEvent struct {
	ID      string
	Subject string
	Status  TaskStatus
}

// Type returns the event type.
func (e TaskEvent) Type() EventType { return EventTypeTask }

// TodoItem is one entry of a todo-list snapshot.
type TodoItem struct {
	Content string
	Status  TaskStatus
}

// TodoListEvent fires when the backend replaces its todo list.
type TodoListEvent struct {
	Items []TodoItem
}

// Type returns the event type.
func (e TodoListEvent) Type() EventType { return EventTypeTodoList }

// CommandPhase distinguishes command start from completion.
type CommandPhase int

const (
	// CommandStarted fires when the shell command begins.
	CommandStarted CommandPhase = iota
	// CommandFinished fires when the shell command completes.
	CommandFinished
)

// CommandEvent fires for shell command execution updates.
type CommandEvent struct {
	Command    string
	Output     string
	Phase      CommandPhase
	ExitCode   int
	DurationMs int64
}

// Type returns the event type.
func (e CommandEvent) Type() EventType { return EventTypeCommand }

// FileChangeKind is the kind of file mutation.
type FileChangeKind string

const (
	FileChangeAdd    FileChangeKind = "add"
	FileChangeUpdate FileChangeKind = "update"
	FileChangeDelete FileChangeKind = "delete"
)

// FileChangeEvent fires when the backend mutates a file.
type FileChangeEvent struct {
	Path string
	Kind FileChangeKind
	Diff string
}

// Type returns the event type.
func (e FileChangeEvent) Type() EventType { return EventTypeFileChange }

// ImageFileEvent fires when the backend produces an image file on disk.
type ImageFileEvent struct {
	Path string
}

// Type returns the event type.
func (e ImageFileEvent) Type() EventType { return EventTypeImageFile }

// SessionInitEvent carries the backend's resume token. An empty token is a
// session-reset signal: the adapter discarded a poisoned token and any
// persisted copy must be cleared before a retry is attempted.
type SessionInitEvent struct {
	ResumeToken string
	Model       string
}

// Type returns the event type.
func (e SessionInitEvent) Type() EventType { return EventTypeSessionInit }

// ResultEvent fires once per turn with the final outcome.
type ResultEvent struct {
	Errors     []string
	CostUSD    float64
	DurationMs int64
	NumTurns   int
	Success    bool
}

// Type returns the event type.
func (e ResultEvent) Type() EventType { return EventTypeResult }

// ErrorEvent fires on adapter or backend errors.
type ErrorEvent struct {
	Err     error
	Context string
}

// Type returns the event type.
func (e ErrorEvent) Type() EventType { return EventTypeError }
