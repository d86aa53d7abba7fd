package sale

// WindowStatus is the outcome of checking a timestamp against a phase.
type WindowStatus uint8

const (
	WindowOpen WindowStatus = iota
	WindowNotStarted
	WindowEnded
)

// Admissible reports whether now falls inside [StartTime, EndTime).
func Admissible(now int64, phase Phase) WindowStatus {
	switch {
	case now < phase.StartTime:
		return WindowNotStarted
	case now >= phase.EndTime:
		return WindowEnded
	default:
		return WindowOpen
	}
}

type windowErrors struct {
	notStarted error
	ended      error
}

var (
	presaleWindow = windowErrors{notStarted: ErrPresaleNotStarted, ended: ErrPresaleEnded}
	publicWindow  = windowErrors{notStarted: ErrPublicNotStarted, ended: ErrPublicEnded}
	singleWindow  = windowErrors{notStarted: ErrSaleNotStarted, ended: ErrSaleEnded}
)

func (w windowErrors) check(now int64, phase Phase) error {
	switch Admissible(now, phase) {
	case WindowNotStarted:
		return w.notStarted
	case WindowEnded:
		return w.ended
	default:
		return nil
	}
}
