package shielder

// journal records undo steps for the mutations of one pool transition so that a failure
// after the tree and registry were touched leaves them byte-identical to before.
type journal struct {
	undo []func()
}

func (j *journal) record(f func()) {
	if j != nil {
		j.undo = append(j.undo, f)
	}
}

// revert replays the undo steps in reverse order and empties the journal.
func (j *journal) revert() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}
