package store

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/pkg/metrics"
)

// Judges returns public copies of all judges.
func (s *Store) Judges() []model.Judge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Judge, len(s.state.Judges))
	for i, j := range s.state.Judges {
		out[i] = j.Public()
	}
	return out
}

// Judge returns a public copy of one judge.
func (s *Store) Judge(id string) (model.Judge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.judgeIndex(id)
	if i < 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %s", ErrNotFound, id)
	}
	return s.state.Judges[i].Public(), nil
}

// AddJudge registers a judge. Names are unique case-insensitively.
func (s *Store) AddJudge(j model.Judge) (model.Judge, error) {
	j.Name = strings.TrimSpace(j.Name)
	if j.Name == "" {
		return model.Judge{}, fmt.Errorf("%w: judge name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		j.ID = s.newID()
	} else if s.judgeIndex(j.ID) >= 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %s exists", ErrConflict, j.ID)
	}
	if s.judgeByName(j.Name) >= 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %q exists", ErrConflict, j.Name)
	}
	j.IsOnline = false
	s.state.Judges = append(s.state.Judges, j)
	s.emit(model.EventJudgeChanged, model.ChangePayload{Action: model.ActionCreated, ID: j.ID, Entity: j.Public()})
	s.changed()
	return j.Public(), nil
}

// UpdateJudge replaces a judge's name, active flag and, when non-empty,
// password.
func (s *Store) UpdateJudge(j model.Judge) (model.Judge, error) {
	j.Name = strings.TrimSpace(j.Name)
	if j.Name == "" {
		return model.Judge{}, fmt.Errorf("%w: judge name is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.judgeIndex(j.ID)
	if i < 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %s", ErrNotFound, j.ID)
	}
	if k := s.judgeByName(j.Name); k >= 0 && k != i {
		return model.Judge{}, fmt.Errorf("%w: judge %q exists", ErrConflict, j.Name)
	}
	cur := &s.state.Judges[i]
	cur.Name = j.Name
	cur.IsActive = j.IsActive
	if j.Password != "" {
		cur.Password = j.Password
	}
	s.emit(model.EventJudgeChanged, model.ChangePayload{Action: model.ActionUpdated, ID: cur.ID, Entity: cur.Public()})
	s.changed()
	return cur.Public(), nil
}

// SetJudgeActive enables or disables a judge.
func (s *Store) SetJudgeActive(id string, active bool) (model.Judge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.judgeIndex(id)
	if i < 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %s", ErrNotFound, id)
	}
	cur := &s.state.Judges[i]
	cur.IsActive = active
	s.emit(model.EventJudgeChanged, model.ChangePayload{Action: model.ActionUpdated, ID: cur.ID, Entity: cur.Public()})
	s.changed()
	return cur.Public(), nil
}

// SetJudgeOnline flips the liveness flag driven by connections. It does not
// mark the store dirty since the flag is never trusted from disk.
func (s *Store) SetJudgeOnline(id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.judgeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: judge %s", ErrNotFound, id)
	}
	cur := &s.state.Judges[i]
	if cur.IsOnline == online {
		return nil
	}
	cur.IsOnline = online
	s.emit(model.EventJudgeChanged, model.ChangePayload{Action: model.ActionUpdated, ID: cur.ID, Entity: cur.Public()})
	s.updateOnlineGauge()
	return nil
}

// DeleteJudge removes a judge and every score it submitted, then
// recomputes the affected candidates from the remaining judges.
func (s *Store) DeleteJudge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.judgeIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: judge %s", ErrNotFound, id)
	}
	s.state.Judges = append(s.state.Judges[:i], s.state.Judges[i+1:]...)

	var affected []int
	for k := range s.state.Candidates {
		c := &s.state.Candidates[k]
		kept := c.Scores[:0]
		for _, sc := range c.Scores {
			if sc.JudgeID != id {
				kept = append(kept, sc)
			}
		}
		if len(kept) != len(c.Scores) {
			c.Scores = kept
			affected = append(affected, k)
		}
	}
	s.recomputeAll()

	s.emit(model.EventJudgeChanged, model.ChangePayload{Action: model.ActionDeleted, ID: id})
	s.emitCandidates(affected)
	s.updateOnlineGauge()
	s.changed()
	return nil
}

// Authenticate checks a judge credential. login matches the judge id or,
// case-insensitively, its name.
func (s *Store) Authenticate(login, password string) (model.Judge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.judgeIndex(login)
	if i < 0 {
		i = s.judgeByName(login)
	}
	if i < 0 {
		return model.Judge{}, fmt.Errorf("%w: judge %s", ErrNotFound, login)
	}
	j := s.state.Judges[i]
	if subtle.ConstantTimeCompare([]byte(j.Password), []byte(password)) != 1 {
		return model.Judge{}, fmt.Errorf("%w: bad credential for %s", ErrUnauthorized, j.Name)
	}
	if !j.IsActive {
		return model.Judge{}, fmt.Errorf("%w: judge %s is disabled", ErrUnauthorized, j.Name)
	}
	return j.Public(), nil
}

func (s *Store) judgeIndex(id string) int {
	for i := range s.state.Judges {
		if s.state.Judges[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) judgeByName(name string) int {
	name = strings.TrimSpace(name)
	for i := range s.state.Judges {
		if strings.EqualFold(s.state.Judges[i].Name, name) {
			return i
		}
	}
	return -1
}

func (s *Store) updateOnlineGauge() {
	n := 0
	for _, j := range s.state.Judges {
		if j.IsOnline {
			n++
		}
	}
	metrics.UpdateJudgesOnline(n)
}
