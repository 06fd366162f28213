package config

type WorkerKeyStruct struct {
	PersistViolationsQueue string
	PersistHistoryQueue    string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
	PersistHistoryQueue:    "persist_history_queue",
}

// Topics published on the event bus.
const (
	TopicViolations = "exam.violations"
	TopicFinalized  = "exam.finalized"
)
