package utils

import "github.com/rs/zerolog"

// LogProgress reports progress of a long running operation as log lines,
// one every Step percent.
type LogProgress struct {
	Logger zerolog.Logger
	Name   string
	Step   int

	last int
}

func NewLogProgress(name string) *LogProgress {
	return &LogProgress{Logger: Log, Name: name, Step: 10, last: -1}
}

// Update records that done of total bytes are processed. An unknown total is reported as -1.
func (p *LogProgress) Update(done, total int64) {
	if total <= 0 {
		p.Logger.Debug().Str("what", p.Name).Int64("done", done).Msg("Progress")
		return
	}
	step := p.Step
	if step <= 0 {
		step = 10
	}
	pct := int(done * 100 / total)
	if pct/step == p.last/step && p.last >= 0 {
		return
	}
	p.last = pct
	p.Logger.Info().Str("what", p.Name).Int("percent", pct).Int64("done", done).Int64("total", total).Msg("Progress")
}
