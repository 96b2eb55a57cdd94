package domain

// StartContext is either Fresh (no history) or Restored from a recap.
type StartContext interface {
	isStartContext()
}

type Fresh struct{}

type Restored struct {
	Recap CumulativeRecap
}

func (Fresh) isStartContext()    {}
func (Restored) isStartContext() {}

func NewStartContext(recap CumulativeRecap) StartContext {
	if recap.IsEmpty() {
		return Fresh{}
	}
	return Restored{Recap: recap}
}
