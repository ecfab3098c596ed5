package strategy

import "github.com/alejandrodnm/fxbot/internal/domain"

// voteOrder is the enumeration the tally walks. The leader is only kept while
// it is strictly ahead, so a tie goes to the later entry.
var voteOrder = []domain.Signal{domain.SignalBuy, domain.SignalSell, domain.SignalHold}

// Votes counts ballots per signal.
type Votes struct {
	Buy, Sell, Hold int
}

func (v Votes) count(s domain.Signal) int {
	switch s {
	case domain.SignalBuy:
		return v.Buy
	case domain.SignalSell:
		return v.Sell
	}
	return v.Hold
}

// Total returns the number of ballots.
func (v Votes) Total() int {
	return v.Buy + v.Sell + v.Hold
}

// Margin is how far the strongest directional vote is ahead of HOLD.
func (v Votes) Margin() int {
	return max(v.Buy, v.Sell) - v.Hold
}

// Tally fuses sub-rule ballots into one signal.
func Tally(ballots []domain.Signal) (domain.Signal, Votes) {
	var v Votes
	for _, b := range ballots {
		switch b {
		case domain.SignalBuy:
			v.Buy++
		case domain.SignalSell:
			v.Sell++
		default:
			v.Hold++
		}
	}

	winner := voteOrder[0]
	for _, candidate := range voteOrder[1:] {
		if !(v.count(winner) > v.count(candidate)) {
			winner = candidate
		}
	}
	return winner, v
}
