// Package link implements the host side of the CoaXPress link layer as a set
// of stages stepped once per tick.
//
// The transmit pipeline (TX) turns host requests into a character stream:
// packets from the Writer are framed, idle words and trigger
// acknowledgments are inserted at word boundaries, and trigger sequences
// preempt everything at character boundaries.
//
// The receive pipeline (RX) consumes decoded words from the PHY. Each word
// carries four copies of one character; the DCharDecoder votes them into a
// single corrected character that later stages use to recognize triggers,
// acknowledgments and packet markers. Packets are classified by type and
// routed to the stream collector, the test checker, the heartbeat reader or
// the command ring.
//
// # Stepping
//
// Transmit stages are WordSource or CharSource values and are pulled from
// the PHY end; receive stages are WordSink values and are pushed from the
// PHY end. Each Step call advances its stage and calls Step on its neighbor
// exactly once, so stepping the outermost stage steps the whole pipeline.
//
// Events such as a detected trigger or a CRC mismatch are one-tick pulses,
// readable until the next Step. Counters accumulate for the life of the
// pipeline.
package link
