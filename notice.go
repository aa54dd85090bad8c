package autocompact

import "fmt"

// Best-effort operations. Their failures are recorded and logged but never
// change the outcome of a compaction.
const (
	OpToast        = "toast"
	OpSubmitPrompt = "submit_prompt"
)

// BestEffort is the result of an operation whose failure is ignored. Err is
// nil when the operation succeeded.
type BestEffort struct {
	Op  string
	Err error
}

// Ok reports whether the operation succeeded.
func (b BestEffort) Ok() bool {
	return b.Err == nil
}

func (b BestEffort) String() string {
	if b.Err == nil {
		return b.Op + ": ok"
	}
	return fmt.Sprintf("%s: %v", b.Op, b.Err)
}
