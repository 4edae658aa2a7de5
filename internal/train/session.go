package train

import "time"

// Session owns the mutable training-run state: the iteration counter and
// the rolling loss/time accumulators behind the periodic progress report.
// Keeping it explicit (rather than loop-local variables) lets resume logic
// and reporting cadence be tested without a real model.
type Session struct {
	// Iteration is the index of the next iteration to run. Resume sets it
	// to the checkpoint's stored counter, which deliberately re-executes
	// that iteration.
	Iteration int

	lossSum float64
	timeSum time.Duration
	count   int
}

// Accumulate folds one iteration's loss and duration into the rolling
// counters.
func (s *Session) Accumulate(loss float64, elapsed time.Duration) {
	s.lossSum += loss
	s.timeSum += elapsed
	s.count++
}

// Window returns the number of iterations accumulated since the last reset.
func (s *Session) Window() int { return s.count }

// Flush returns the mean loss and mean per-batch time over the accumulated
// window and resets both counters to zero.
func (s *Session) Flush() (meanLoss float64, meanTime time.Duration) {
	if s.count > 0 {
		meanLoss = s.lossSum / float64(s.count)
		meanTime = s.timeSum / time.Duration(s.count)
	}

	s.lossSum = 0
	s.timeSum = 0
	s.count = 0

	return meanLoss, meanTime
}
