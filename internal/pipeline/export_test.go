package pipeline

// RunOnce performs the scheduled job immediately.
func (s *Scheduler) RunOnce() { s.run() }
