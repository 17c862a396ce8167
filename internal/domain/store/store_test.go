package store_test

import (
	"errors"
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewStore(t *testing.T) {
	Convey("Given a fresh store", t, func() {
		s := store.New()

		Convey("Then the session starts at round 1 on the opening stage", func() {
			sess := s.Session()
			So(sess.CurrentRound, ShouldEqual, 1)
			So(sess.CurrentStage, ShouldEqual, model.StageOpening)
			So(s.Candidates(), ShouldBeEmpty)
		})
	})
}

func TestCandidates(t *testing.T) {
	Convey("Given a populated store", t, func() {
		f := newFixture()

		Convey("When a candidate is added without a number", func() {
			c, err := f.store.AddCandidate(model.Candidate{Name: "  Ana "})

			Convey("Then it takes the next number and starts waiting", func() {
				So(err, ShouldBeNil)
				So(c.Number, ShouldEqual, 3)
				So(c.Name, ShouldEqual, "Ana")
				So(c.Status, ShouldEqual, model.StatusWaiting)
				So(f.events.types(), ShouldResemble, []model.EventType{model.EventCandidateChanged})
				So(f.dirty, ShouldEqual, 1)
			})
		})

		Convey("When a candidate reuses a number", func() {
			_, err := f.store.AddCandidate(model.Candidate{Name: "Dup", Number: 2})

			Convey("Then it conflicts and nothing is published", func() {
				So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
				So(f.events.types(), ShouldBeEmpty)
				So(f.dirty, ShouldEqual, 0)
			})
		})

		Convey("When the current candidate is switched", func() {
			_, err := f.store.SetCurrentCandidate("c1")
			So(err, ShouldBeNil)
			f.events.reset()

			c2, err := f.store.SetCurrentCandidate("c2")

			Convey("Then the previous one goes back to waiting and is announced first", func() {
				So(err, ShouldBeNil)
				So(c2.Status, ShouldEqual, model.StatusInterviewing)
				So(f.events.types(), ShouldResemble, []model.EventType{model.EventCandidateChanged, model.EventCandidateChanged})

				first := f.events.events[0].Data.(model.ChangePayload)
				second := f.events.events[1].Data.(model.ChangePayload)
				So(first.ID, ShouldEqual, "c1")
				So(first.Entity.(model.Candidate).Status, ShouldEqual, model.StatusWaiting)
				So(second.ID, ShouldEqual, "c2")

				interviewing := 0
				for _, c := range f.store.Candidates() {
					if c.Status == model.StatusInterviewing {
						interviewing++
					}
				}
				So(interviewing, ShouldEqual, 1)
				So(f.store.Session().CurrentCandidateID, ShouldEqual, "c2")
			})
		})

		Convey("When an unknown candidate is made current", func() {
			_, err := f.store.SetCurrentCandidate("ghost")

			Convey("Then it is a silent no-op", func() {
				So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
				So(f.events.types(), ShouldBeEmpty)
			})
		})

		Convey("When the current candidate completes", func() {
			_, _ = f.store.SetCurrentCandidate("c1")
			c, err := f.store.CompleteCandidate("c1")

			Convey("Then the current pointer is cleared", func() {
				So(err, ShouldBeNil)
				So(c.Status, ShouldEqual, model.StatusCompleted)
				So(f.store.Session().CurrentCandidateID, ShouldBeEmpty)
			})
		})

		Convey("When the current candidate is deleted", func() {
			_, _ = f.store.SetCurrentCandidate("c2")
			So(f.store.DeleteCandidate("c2"), ShouldBeNil)

			Convey("Then it is gone along with the pointer", func() {
				_, err := f.store.Candidate("c2")
				So(errors.Is(err, store.ErrNotFound), ShouldBeTrue)
				So(f.store.Session().CurrentCandidateID, ShouldBeEmpty)
			})
		})

		Convey("When candidate details are updated", func() {
			_, err := f.store.SubmitScore("c1", "a", map[string]float64{"dim1": 10})
			So(err, ShouldBeNil)

			c, err := f.store.UpdateCandidate(model.Candidate{ID: "c1", Name: "Lin Wei", Department: "R&D"})

			Convey("Then scores and number are kept", func() {
				So(err, ShouldBeNil)
				So(c.Name, ShouldEqual, "Lin Wei")
				So(c.Number, ShouldEqual, 1)
				So(c.Scores, ShouldHaveLength, 1)
			})
		})

		Convey("When returned candidates are modified", func() {
			cands := f.store.Candidates()
			cands[0].Name = "mutated"

			Convey("Then the store is unaffected", func() {
				c, _ := f.store.Candidate(cands[0].ID)
				So(c.Name, ShouldNotEqual, "mutated")
			})
		})
	})
}

func TestJudges(t *testing.T) {
	Convey("Given a populated store", t, func() {
		f := newFixture()

		Convey("When judges are listed", func() {
			Convey("Then passwords never leave the store", func() {
				for _, j := range f.store.Judges() {
					So(j.Password, ShouldBeEmpty)
				}
			})
		})

		Convey("When a judge authenticates", func() {
			j, err := f.store.Authenticate("judge a", "pa")
			_, badErr := f.store.Authenticate("a", "nope")
			_, missingErr := f.store.Authenticate("zed", "pa")

			Convey("Then name or id plus password is checked", func() {
				So(err, ShouldBeNil)
				So(j.ID, ShouldEqual, "a")
				So(errors.Is(badErr, store.ErrUnauthorized), ShouldBeTrue)
				So(errors.Is(missingErr, store.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a disabled judge authenticates", func() {
			_, err := f.store.SetJudgeActive("b", false)
			So(err, ShouldBeNil)
			_, err = f.store.Authenticate("b", "pb")

			So(errors.Is(err, store.ErrUnauthorized), ShouldBeTrue)
		})

		Convey("When a judge goes online twice", func() {
			So(f.store.SetJudgeOnline("a", true), ShouldBeNil)
			So(f.store.SetJudgeOnline("a", true), ShouldBeNil)

			Convey("Then one change is published and the store stays clean", func() {
				So(f.events.types(), ShouldResemble, []model.EventType{model.EventJudgeChanged})
				So(f.dirty, ShouldEqual, 0)
				j, _ := f.store.Judge("a")
				So(j.IsOnline, ShouldBeTrue)
			})
		})

		Convey("When a judge name is taken", func() {
			_, err := f.store.AddJudge(model.Judge{Name: "JUDGE A"})
			So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
		})

		Convey("When a judge is updated without a password", func() {
			j, err := f.store.UpdateJudge(model.Judge{ID: "a", Name: "Judge Ada", IsActive: true})
			So(err, ShouldBeNil)

			Convey("Then the name changes and the stored password is kept", func() {
				So(j.Name, ShouldEqual, "Judge Ada")
				So(j.Password, ShouldBeEmpty)
				_, err := f.store.Authenticate("judge ada", "pa")
				So(err, ShouldBeNil)
				So(f.dirty, ShouldEqual, 1)
			})
		})

		Convey("When a judge is updated with a new password", func() {
			_, err := f.store.UpdateJudge(model.Judge{ID: "a", Name: "Judge A", Password: "pz", IsActive: true})
			So(err, ShouldBeNil)

			Convey("Then only the new password is accepted", func() {
				_, oldErr := f.store.Authenticate("a", "pa")
				So(errors.Is(oldErr, store.ErrUnauthorized), ShouldBeTrue)
				_, err := f.store.Authenticate("a", "pz")
				So(err, ShouldBeNil)
			})
		})

		Convey("When a judge is renamed onto another judge", func() {
			_, err := f.store.UpdateJudge(model.Judge{ID: "a", Name: "judge b"})
			So(errors.Is(err, store.ErrConflict), ShouldBeTrue)
		})
	})
}

func TestSnapshotRestore(t *testing.T) {
	Convey("Given a store with scores and a current candidate", t, func() {
		f := newFixture()
		_, _ = f.store.SubmitScore("c1", "a", map[string]float64{"dim1": 10, "dim2": 15})
		_, _ = f.store.SetCurrentCandidate("c1")
		_ = f.store.SetJudgeOnline("a", true)

		Convey("When the snapshot is restored into a new store", func() {
			snap := f.store.Snapshot()
			other := store.New()
			So(other.Restore(snap), ShouldBeNil)

			Convey("Then candidates, scores and statuses match", func() {
				got := other.Candidates()
				want := f.store.Candidates()
				So(len(got), ShouldEqual, len(want))
				for i := range want {
					So(got[i].ID, ShouldEqual, want[i].ID)
					So(got[i].Status, ShouldEqual, want[i].Status)
					So(got[i].TotalScore, ShouldEqual, want[i].TotalScore)
					So(got[i].Scores, ShouldResemble, want[i].Scores)
				}
				So(other.Session().CurrentCandidateID, ShouldEqual, "c1")
			})

			Convey("Then online flags are not trusted", func() {
				j, _ := other.Judge("a")
				So(j.IsOnline, ShouldBeFalse)
			})
		})

		Convey("When a state with two interviewing candidates is restored", func() {
			snap := f.store.Snapshot()
			snap.Candidates[1].Status = model.StatusInterviewing
			err := f.store.Restore(snap)

			Convey("Then it is rejected and the live state is kept", func() {
				So(errors.Is(err, store.ErrInvalidInput), ShouldBeTrue)
				c, _ := f.store.Candidate("c2")
				So(c.Status, ShouldEqual, model.StatusWaiting)
			})
		})
	})
}

func TestLeaderboard(t *testing.T) {
	Convey("Given candidates with different finals", t, func() {
		f := newFixture()
		_, _ = f.store.AddCandidate(model.Candidate{Name: "Tie", Number: 3})
		_, _ = f.store.SubmitScore("c2", "a", map[string]float64{"dim1": 20, "dim2": 20})

		rows := f.store.Leaderboard()

		Convey("Then the best final comes first and ties fall back to number", func() {
			So(rows, ShouldHaveLength, 3)
			So(rows[0].CandidateID, ShouldEqual, "c2")
			So(rows[0].Rank, ShouldEqual, 1)
			So(rows[0].Judged, ShouldEqual, 1)
			So(rows[1].CandidateID, ShouldEqual, "c1")
			So(rows[2].CandidateNumber, ShouldEqual, 3)
		})
	})
}
