package metrics

import "github.com/san-kum/dynrelax/internal/dynamo"

// SlackBars reports the fraction of bars carrying no tension after the
// latest iteration. Under the cable-only policy these are the bars the
// form has released.
type SlackBars struct {
	name  string
	slack int
	bars  int
}

func NewSlackBars() *SlackBars {
	return &SlackBars{name: "slack_fraction"}
}

func (s *SlackBars) Name() string {
	return s.name
}

func (s *SlackBars) Observe(net *dynamo.Network, _ Sample) {
	s.slack = 0
	s.bars = len(net.Bars)
	for i := range net.Bars {
		if net.Bars[i].Force <= 0 {
			s.slack++
		}
	}
}

func (s *SlackBars) Value() float64 {
	if s.bars == 0 {
		return 0
	}
	return float64(s.slack) / float64(s.bars)
}

func (s *SlackBars) Reset() {
	s.slack = 0
	s.bars = 0
}
