package link

// IdlePeriod is the maximum number of words between two idle words
// (CXP-001-2021 section 9.2.5.1).
const IdlePeriod = 10000

type idleState uint8

const (
	idleWrite idleState = iota
	idleCopy
)

// IdleInserter emits the idle word whenever the upstream has a gap, after
// every packet, and at least once every IdlePeriod words. The periodic idle
// may land inside a packet; receivers drop idle words wherever they appear.
type IdleInserter struct {
	up    WordSource
	state idleState
	cnt   int
}

// NewIdleInserter returns an inserter wrapping up. It starts by writing
// idle.
func NewIdleInserter(up WordSource) *IdleInserter {
	return &IdleInserter{up: up, state: idleWrite, cnt: IdlePeriod - 1}
}

// Out presents either the idle word or the upstream word.
func (s *IdleInserter) Out() (Word, bool) {
	if s.state == idleWrite {
		return IdleWord, true
	}
	return s.up.Out()
}

// Step ends the tick.
func (s *IdleInserter) Step(ack bool) {
	w, stb := s.up.Out()

	switch s.state {
	case idleWrite:
		// Upstream data is held until COPY.
		s.up.Step(!stb)
		if stb && ack {
			s.cnt = IdlePeriod - 1
			s.state = idleCopy
		}

	case idleCopy:
		s.up.Step(ack)
		if !ack {
			return
		}
		last := s.cnt == 0
		if stb {
			s.cnt--
		}
		if !stb || w.EOP || last {
			s.state = idleWrite
		}
	}
}

// Inserting reports whether the idle word is presented this tick.
func (s *IdleInserter) Inserting() bool {
	return s.state == idleWrite
}
