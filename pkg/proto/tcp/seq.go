package tcp

import "github.com/soypat/seqs"

// IsBetweenWrapped reports whether x lies strictly between start and end
// walking forward on the 2^32 sequence circle. Every ordering comparison of
// sequence numbers in this package goes through it.
func IsBetweenWrapped(start, x, end seqs.Value) bool {
	d := seqs.Sizeof(start, x)
	return d != 0 && d < seqs.Sizeof(start, end)
}

// acceptableAck implements SND.UNA < SEG.ACK =< SND.NXT.
func acceptableAck(una, ack, nxt seqs.Value) bool {
	return IsBetweenWrapped(una, ack, seqs.Add(nxt, 1))
}

// ackOfUnsent reports whether ack acknowledges sequence numbers past
// SND.NXT, that is, in the half of the space ahead of nxt.
func ackOfUnsent(nxt, ack seqs.Value) bool {
	return IsBetweenWrapped(nxt, ack, seqs.Add(nxt, 1<<31))
}

// inWindow implements RCV.NXT =< seq < RCV.NXT+RCV.WND.
func inWindow(nxt seqs.Value, wnd uint16, seq seqs.Value) bool {
	return IsBetweenWrapped(nxt-1, seq, seqs.Add(nxt, seqs.Size(wnd)))
}

// acceptableSegment is the segment acceptability test of RFC 793 3.3.
//
//	Segment Receive  Test
//	Length  Window
//	------- -------  -------------------------------------------
//	   0       0     SEG.SEQ = RCV.NXT
//	   0      >0     RCV.NXT =< SEG.SEQ < RCV.NXT+RCV.WND
//	  >0       0     not acceptable
//	  >0      >0     RCV.NXT =< SEG.SEQ < RCV.NXT+RCV.WND
//	              or RCV.NXT =< SEG.SEQ+SEG.LEN-1 < RCV.NXT+RCV.WND
func acceptableSegment(nxt seqs.Value, wnd uint16, seq seqs.Value, seglen seqs.Size) bool {
	switch {
	case seglen == 0 && wnd == 0:
		return seq == nxt
	case seglen == 0:
		return inWindow(nxt, wnd, seq)
	case wnd == 0:
		return false
	default:
		return inWindow(nxt, wnd, seq) || inWindow(nxt, wnd, seqs.Add(seq, seglen-1))
	}
}
