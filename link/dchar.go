package link

// voter holds the AND of one 3-of-4 subset of a quad.
type voter struct {
	data uint8
	k    bool
}

// quadSubsets lists the four 3-of-4 lane combinations ABC, ABD, ACD, BCD.
var quadSubsets = [4][3]int{
	{0, 1, 2},
	{0, 1, 3},
	{0, 2, 3},
	{1, 2, 3},
}

func vote3(q [Lanes]Char) [4]voter {
	var v [4]voter
	for i, s := range quadSubsets {
		a, b, c := q[s[0]], q[s[1]], q[s[2]]
		v[i] = voter{
			data: a.Data & b.Data & c.Data,
			k:    a.K && b.K && c.K,
		}
	}
	return v
}

func reduceVoters(v [4]voter) Char {
	var out Char
	for _, t := range v {
		out.Data |= t.data
		out.K = out.K || t.k
	}
	return out
}

// Vote returns the per-bit majority of a quad of duplicated characters.
// A bit is set in the result when at least three copies agree on it, so a
// single-bit error in any one copy is corrected.
//
// Disagreeing errors at the same bit position in two copies are neither
// corrected nor detected.
func Vote(q [Lanes]Char) Char {
	return reduceVoters(vote3(q))
}

// DCharDecoder injects the majority-voted duplicated character into every
// received word (CXP-001-2021 section 9.2.2.1).
//
// It is a two-tick pipeline: the first tick buffers the word and registers
// the four subset terms, the second publishes their OR in DChar/DCharK.
// Downstream stages read the voted value instead of the raw lanes; the raw
// lanes are still forwarded for payload words.
type DCharDecoder struct {
	next WordSink

	// tick 1 registers
	buf    Word
	bufStb bool
	voters [4]voter
	// tick 2 registers
	out    Word
	outStb bool
}

// NewDCharDecoder returns a decoder feeding next.
func NewDCharDecoder(next WordSink) *DCharDecoder {
	return &DCharDecoder{next: next}
}

// Ready reports whether the pipeline advances this tick.
func (d *DCharDecoder) Ready() bool {
	return d.next.Ready()
}

// Step presents the published word downstream and, if downstream accepted,
// shifts the pipeline by one word.
func (d *DCharDecoder) Step(w Word, stb bool) {
	ack := d.next.Ready()
	d.next.Step(d.out, d.outStb)
	if !ack {
		return
	}

	v := reduceVoters(d.voters)
	d.out = d.buf
	d.out.DChar = v.Data
	d.out.DCharK = v.K
	d.outStb = d.bufStb

	d.buf = w
	d.bufStb = stb
	d.voters = vote3(w.Quad())
}
