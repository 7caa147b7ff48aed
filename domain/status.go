package domain

// InferStatus recomputes a task status from its subtask completion
// ratio. It is evaluated after every subtask add, toggle or delete when
// advanced status inference is enabled.
//
// Postponed is manual-only: it is never entered or left here. With no
// subtasks the status stays fully user-controlled. A task whose last
// completed subtask was unchecked is not demoted from in_progress back
// to todo; only done reverts.
func InferStatus(current Status, subtasks []Subtask, advanced bool) Status {
	if !advanced || len(subtasks) == 0 || current == StatusPostponed {
		return current
	}

	completed := 0
	for _, s := range subtasks {
		if s.Completed {
			completed++
		}
	}

	switch {
	case completed == len(subtasks):
		return StatusDone
	case completed > 0:
		return StatusInProgress
	default:
		if current == StatusDone {
			return StatusTodo
		}
		return current
	}
}
