package tui

// StageUpdateMsg updates a single stage row's fields by column name.
type StageUpdateMsg struct {
	Key    string
	Fields map[string]string
}

// WorkDoneMsg signals that the pipeline has finished.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
