package store

import (
	"fmt"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Session returns a copy of the display session.
func (s *Store) Session() model.DisplaySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session.Clone()
}

// SetCurrentStage changes what the display renders.
func (s *Store) SetCurrentStage(stage string) (model.DisplaySession, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return model.DisplaySession{}, fmt.Errorf("%w: stage is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Session.CurrentStage = stage
	s.state.Session.UpdatedAt = s.now()
	s.emit(model.EventStageChanged, model.SessionPayload{Session: s.state.Session.Clone()})
	s.changed()
	return s.state.Session.Clone(), nil
}

// SetCurrentRound switches the scoring round. Every candidate aggregate is
// recomputed from the new round's submissions.
func (s *Store) SetCurrentRound(round int) (model.DisplaySession, error) {
	if round < 1 {
		return model.DisplaySession{}, fmt.Errorf("%w: round must be at least 1", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Session.CurrentRound = round
	s.state.Session.UpdatedAt = s.now()
	moved := s.recomputeAll()

	s.emit(model.EventStageChanged, model.SessionPayload{Session: s.state.Session.Clone()})
	s.emitCandidates(moved)
	s.changed()
	return s.state.Session.Clone(), nil
}

// SetCurrentInterviewItem points the display at an interview item and
// re-arms the timer from its time limit. An empty id clears the pointer.
// For questions the legacy question pointer follows along and
// question_changed is published before interview_item_changed.
func (s *Store) SetCurrentInterviewItem(id string) (model.DisplaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &s.state.Session
	var item *model.InterviewItem
	if id != "" {
		i := s.interviewItemIndex(id)
		if i < 0 {
			return model.DisplaySession{}, fmt.Errorf("%w: interview item %s", ErrNotFound, id)
		}
		it := s.state.InterviewItems[i]
		item = &it
	}

	sess.CurrentInterviewItemID = id
	sess.Timer = nil
	if item != nil && item.TimeLimit > 0 {
		ms := int64(item.TimeLimit) * 1000
		sess.Timer = &model.TimerState{RemainingTime: ms, TotalTime: ms}
	}
	sess.UpdatedAt = s.now()

	switch {
	case item != nil && item.Kind == model.KindQuestion:
		sess.CurrentQuestionID = id
		s.emit(model.EventQuestionChanged, model.SessionPayload{Session: sess.Clone(), Item: item})
	case sess.CurrentQuestionID != "":
		sess.CurrentQuestionID = ""
		s.emit(model.EventQuestionChanged, model.SessionPayload{Session: sess.Clone()})
	}
	s.emit(model.EventInterviewItemChanged, model.SessionPayload{Session: sess.Clone(), Item: item})
	s.changed()
	return sess.Clone(), nil
}

// StartTimer runs the countdown from its remaining time, or from the full
// duration once it has reached zero. Starting a running timer is a no-op.
func (s *Store) StartTimer() (model.TimerState, error) {
	return s.timerOp(func(t *model.TimerState, now int64) bool {
		if t.IsRunning {
			return false
		}
		if t.RemainingTime <= 0 {
			t.RemainingTime = t.TotalTime
		}
		t.IsRunning, t.IsPaused, t.StartTime = true, false, now
		return true
	})
}

// PauseTimer stops the countdown, keeping remaining = remaining - elapsed.
func (s *Store) PauseTimer() (model.TimerState, error) {
	return s.timerOp(func(t *model.TimerState, now int64) bool {
		if !t.IsRunning {
			return false
		}
		t.RemainingTime -= now - t.StartTime
		if t.RemainingTime < 0 {
			t.RemainingTime = 0
		}
		t.IsRunning, t.IsPaused, t.StartTime = false, true, 0
		return true
	})
}

// ResumeTimer continues a paused countdown from now.
func (s *Store) ResumeTimer() (model.TimerState, error) {
	return s.timerOp(func(t *model.TimerState, now int64) bool {
		if !t.IsPaused {
			return false
		}
		t.IsRunning, t.IsPaused, t.StartTime = true, false, now
		return true
	})
}

// ResetTimer stops the countdown and refills it.
func (s *Store) ResetTimer() (model.TimerState, error) {
	return s.timerOp(func(t *model.TimerState, _ int64) bool {
		t.IsRunning, t.IsPaused, t.StartTime = false, false, 0
		t.RemainingTime = t.TotalTime
		return true
	})
}

// SetTimerDuration replaces the countdown with a stopped one of seconds.
func (s *Store) SetTimerDuration(seconds int) (model.TimerState, error) {
	if seconds <= 0 {
		return model.TimerState{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := int64(seconds) * 1000
	s.state.Session.Timer = &model.TimerState{RemainingTime: ms, TotalTime: ms}
	s.state.Session.UpdatedAt = s.now()
	s.emit(model.EventTimerChanged, model.SessionPayload{Session: s.state.Session.Clone()})
	s.changed()
	return *s.state.Session.Timer, nil
}

// timerOp applies fn to the live timer. fn reports whether it changed
// anything; unchanged timers publish nothing.
func (s *Store) timerOp(fn func(t *model.TimerState, nowMS int64) bool) (model.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.state.Session.Timer
	if t == nil {
		return model.TimerState{}, ErrNoTimer
	}
	now := s.now()
	if !fn(t, now.UnixMilli()) {
		return *t, nil
	}
	s.state.Session.UpdatedAt = now
	s.emit(model.EventTimerChanged, model.SessionPayload{Session: s.state.Session.Clone()})
	s.changed()
	return *t, nil
}
