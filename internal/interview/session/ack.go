package session

// Acknowledgement is a spoken line owed to the candidate after a stage change.
type Acknowledgement struct {
	Message  string `json:"message"`
	Stage    string `json:"stage"`
	Sequence int    `json:"sequence"`
}

// Relay holds at most one pending acknowledgement and hands it out once the conversation
// is observed in the stage it belongs to. A newer Queue replaces an undelivered one.
type Relay struct {
	pending      *Acknowledgement
	acknowledged bool
}

// Queue stores an acknowledgement for target, replacing whatever was pending.
func (r *Relay) Queue(message, target string, sequence int) {
	r.pending = &Acknowledgement{Message: message, Stage: target, Sequence: sequence}
	r.acknowledged = false
}

// TryConsume returns the pending message when current matches its target stage.
// Each queued acknowledgement is delivered at most once.
func (r *Relay) TryConsume(current string) (string, bool) {
	if r.pending == nil || r.acknowledged || r.pending.Stage != current {
		return "", false
	}
	msg := r.pending.Message
	r.pending = nil
	r.acknowledged = true
	return msg, true
}

// MarkDelivered records that the acknowledgement for sequence was already spoken another way.
// It is a no-op when a newer acknowledgement has been queued since.
func (r *Relay) MarkDelivered(sequence int) bool {
	if r.pending == nil || r.acknowledged || r.pending.Sequence != sequence {
		return false
	}
	r.pending = nil
	r.acknowledged = true
	return true
}

// Pending returns a copy of the undelivered acknowledgement, if any.
func (r *Relay) Pending() *Acknowledgement {
	if r.pending == nil {
		return nil
	}
	a := *r.pending
	return &a
}

func (r *Relay) Acknowledged() bool {
	return r.acknowledged
}
