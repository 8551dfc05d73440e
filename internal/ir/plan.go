package ir

// PlanSummary counts the operations a preview would perform.
type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	NoOp   int `json:"noOp"`
}

// Summarize tallies the operations of a preview event list.
func Summarize(events []PreviewEvent) PlanSummary {
	var s PlanSummary
	for _, ev := range events {
		switch ev.Op {
		case OpCreate:
			s.Create++
		case OpUpdate:
			s.Update++
		case OpDelete:
			s.Delete++
		default:
			s.NoOp++
		}
	}
	return s
}
