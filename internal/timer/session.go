package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/manav03panchal/taskmap/internal/model"
)

// Config configures a Session.
type Config struct {
	Mode model.TimerMode

	// Work is the pomodoro work interval and the countdown length.
	Work time.Duration
	// Break and LongBreak are the pomodoro rest intervals.
	Break     time.Duration
	LongBreak time.Duration
	// SessionsBeforeLong is how many work intervals precede a long break.
	SessionsBeforeLong int
	// Sessions is the number of pomodoro work intervals to run.
	Sessions int

	// TaskID, ProjectID and Note are copied into every record.
	TaskID    string
	ProjectID string
	Note      string

	// Tick is the display refresh interval.
	// Default: 100ms
	Tick time.Duration
	// Gap is the pause between pomodoro intervals. DefaultPomodoro uses 2s.
	Gap time.Duration
}

// DefaultPomodoro returns the classic 25/5/15 pomodoro configuration.
func DefaultPomodoro() Config {
	return Config{
		Mode:               model.TimerPomodoro,
		Work:               25 * time.Minute,
		Break:              5 * time.Minute,
		LongBreak:          15 * time.Minute,
		SessionsBeforeLong: 4,
		Sessions:           4,
		Gap:                2 * time.Second,
	}
}

// Validate checks that cfg can run.
func (c Config) Validate() error {
	switch c.Mode {
	case model.TimerPomodoro:
		if c.Work <= 0 || c.Break < 0 || c.LongBreak < 0 {
			return fmt.Errorf("pomodoro intervals must be positive")
		}
		if c.Sessions <= 0 {
			return fmt.Errorf("pomodoro needs at least one session, got %d", c.Sessions)
		}
	case model.TimerCountdown:
		if c.Work <= 0 {
			return fmt.Errorf("countdown duration must be positive")
		}
	case model.TimerStopwatch:
	default:
		return fmt.Errorf("unknown timer mode %q", c.Mode)
	}
	return nil
}

// State is a snapshot of a running session.
type State struct {
	Mode     model.TimerMode
	Phase    Phase
	Session  int
	Sessions int
	// Total is the interval length; zero for a stopwatch.
	Total     time.Duration
	Remaining time.Duration
	// Active is the unpaused time spent in the current interval.
	Active time.Duration
	Paused bool
}

// Label names the current interval for display.
func (s State) Label() string {
	switch s.Mode {
	case model.TimerStopwatch:
		return "STOPWATCH"
	case model.TimerCountdown:
		return "COUNTDOWN"
	}
	return s.Phase.String()
}

// Progress is the completed fraction of the interval.
func (s State) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	return 1 - float64(s.Remaining)/float64(s.Total)
}

type outcome int

const (
	outcomeDone outcome = iota
	outcomeSkipped
	outcomeStopped
)

// Session runs one timer. Work intervals that end, complete or not, are
// reported as records; breaks are not recorded.
type Session struct {
	cfg     Config
	display *Display
	now     func() time.Time

	// OnRecord receives each finished work interval.
	OnRecord func(*model.TimerRecord)

	mu    sync.RWMutex
	state State

	pauseCh chan struct{}
	skipCh  chan struct{}
	stopCh  chan struct{}

	records []*model.TimerRecord
}

// NewSession creates a session. A nil display draws nothing.
func NewSession(cfg Config, display *Display) *Session {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Gap < 0 {
		cfg.Gap = 0
	}
	if cfg.SessionsBeforeLong <= 0 {
		cfg.SessionsBeforeLong = 4
	}
	if display == nil {
		display = &Display{}
	}
	return &Session{
		cfg:     cfg,
		display: display,
		now:     time.Now,
		pauseCh: make(chan struct{}, 1),
		skipCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
	}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Records returns the records produced so far.
func (s *Session) Records() []*model.TimerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*model.TimerRecord(nil), s.records...)
}

// TogglePause pauses or resumes the current interval.
func (s *Session) TogglePause() { signal(s.pauseCh) }

// Skip ends the current interval early and moves to the next one.
func (s *Session) Skip() { signal(s.skipCh) }

// Stop ends the session, recording the current work interval as incomplete.
func (s *Session) Stop() { signal(s.stopCh) }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run blocks until the session finishes, is stopped, or ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	switch s.cfg.Mode {
	case model.TimerCountdown:
		s.runInterval(ctx, PhaseWork, s.cfg.Work, 0)
	case model.TimerStopwatch:
		s.runInterval(ctx, PhaseWork, 0, 0)
	default:
		s.runPomodoro(ctx)
	}
	return nil
}

func (s *Session) runPomodoro(ctx context.Context) {
	done := 0
	for n := 1; n <= s.cfg.Sessions; n++ {
		if s.runInterval(ctx, PhaseWork, s.cfg.Work, n) == outcomeStopped {
			return
		}
		done++
		if n == s.cfg.Sessions {
			return
		}

		phase, length := PhaseBreak, s.cfg.Break
		if done%s.cfg.SessionsBeforeLong == 0 {
			phase, length = PhaseLongBreak, s.cfg.LongBreak
		}
		if !s.wait(ctx, s.cfg.Gap) {
			return
		}
		if length > 0 && s.runInterval(ctx, phase, length, n) == outcomeStopped {
			return
		}
		if !s.wait(ctx, s.cfg.Gap) {
			return
		}
	}
}

// wait sleeps for d unless the session is stopped first.
func (s *Session) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.stopCh:
		return false
	}
}

// runInterval times one interval. A zero total runs until stopped.
func (s *Session) runInterval(ctx context.Context, phase Phase, total time.Duration, n int) outcome {
	start := s.now()
	s.mu.Lock()
	s.state = State{
		Mode:      s.cfg.Mode,
		Phase:     phase,
		Session:   n,
		Total:     total,
		Remaining: total,
	}
	if s.cfg.Mode == model.TimerPomodoro {
		s.state.Sessions = s.cfg.Sessions
	}
	s.mu.Unlock()
	s.display.Draw(s.State())

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	last := start

	for {
		select {
		case <-ctx.Done():
			s.finish(phase, start, false)
			return outcomeStopped
		case <-s.stopCh:
			s.finish(phase, start, false)
			return outcomeStopped
		case <-s.skipCh:
			s.finish(phase, start, false)
			return outcomeSkipped
		case <-s.pauseCh:
			s.mu.Lock()
			s.state.Paused = !s.state.Paused
			s.mu.Unlock()
			last = s.now()
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			if !s.state.Paused {
				s.state.Active += now.Sub(last)
				if total > 0 {
					s.state.Remaining = total - s.state.Active
				}
			}
			expired := total > 0 && s.state.Remaining <= 0
			if expired {
				s.state.Remaining = 0
			}
			s.mu.Unlock()
			last = now

			if expired {
				s.display.Draw(s.State())
				s.finish(phase, start, true)
				return outcomeDone
			}
		}
		s.display.Draw(s.State())
	}
}

// finish records a work interval. A stopwatch is complete whenever it
// stops; other modes only when the interval ran out.
func (s *Session) finish(phase Phase, start time.Time, completed bool) {
	if phase != PhaseWork {
		return
	}
	st := s.State()
	if s.cfg.Mode == model.TimerStopwatch {
		completed = true
	}
	if st.Active <= 0 && !completed {
		return
	}

	rec := model.NewTimerRecord(s.cfg.Mode, start, s.now())
	rec.Duration = int64(st.Active.Seconds())
	rec.Completed = completed
	rec.TaskID = s.cfg.TaskID
	rec.ProjectID = s.cfg.ProjectID
	rec.Note = s.cfg.Note

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	if s.OnRecord != nil {
		s.OnRecord(rec)
	}
}
