package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const flatV0 = `{
  "candidates": [
    {"id": "c1", "number": 1, "name": "Lin", "status": "interviewing",
     "scores": [{"id": "s1", "judgeId": "j1", "candidateId": "c1", "round": 1,
                 "dimensionScores": {"d1": 8}, "totalScore": 8}]},
    {"id": "c2", "number": 2, "name": "Mo"}
  ],
  "judges": [{"id": "j1", "name": "Ada", "password": "pw", "isActive": true, "isOnline": true}],
  "dimensions": [{"id": "d1", "name": "Logic", "maxScore": 10, "weight": 100, "isActive": true}],
  "scoreItems": [{"id": "i1", "name": "Interview", "maxScore": 100, "weight": 100, "isActive": true, "isInterviewScore": true}],
  "questions": [
    {"id": "q1", "content": "Why this team?", "timeLimit": 60},
    {"content": "Anything else?"}
  ],
  "session": {"currentStage": "interview", "currentRound": 1, "currentQuestionId": "q1"}
}`

const docV1 = `{
  "version": 1,
  "batches": [{
    "id": "b1", "name": "Spring", "status": "paused",
    "config": {"judges": [], "dimensions": [], "scoreItems": [],
               "questions": [{"title": "Strengths", "timeLimit": 90}]},
    "runtime": {"candidates": [], "session": {"currentRound": 1}}
  }],
  "state": {
    "candidates": [], "judges": [], "dimensions": [], "scoreItems": [],
    "interviewItems": [{"id": "st1", "type": "interview_stage", "title": "Opening", "order": 1, "isActive": true}],
    "questions": [{"id": "q9", "title": "Weaknesses", "order": 2}],
    "session": {"currentRound": 1}
  }
}`

func TestDecodeMigrations(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given a flat unversioned file with legacy questions", t, func() {
		doc, err := Decode([]byte(flatV0), now, seqIDs("m"))
		So(err, ShouldBeNil)

		Convey("Then it is wrapped into one active migration batch", func() {
			So(doc.Version, ShouldEqual, model.SchemaVersion)
			So(doc.Batches, ShouldHaveLength, 1)
			b := doc.Batches[0]
			So(b.Name, ShouldEqual, "migration")
			So(b.Status, ShouldEqual, model.BatchActive)
			So(doc.ActiveBatchID, ShouldEqual, b.ID)
			So(b.StartedAt, ShouldNotBeNil)
		})

		Convey("Then candidates, scores and session survive", func() {
			So(doc.State.Candidates, ShouldHaveLength, 2)
			So(doc.State.Candidates[0].Scores, ShouldHaveLength, 1)
			So(doc.State.Candidates[0].Scores[0].DimensionScores["d1"], ShouldEqual, 8)
			So(doc.State.Session.CurrentStage, ShouldEqual, "interview")
			So(doc.Batches[0].Runtime.Candidates, ShouldHaveLength, 2)
			So(doc.Batches[0].Runtime.Judges[0].ID, ShouldEqual, "j1")
		})

		Convey("Then questions become interview items", func() {
			items := doc.State.InterviewItems
			So(items, ShouldHaveLength, 2)
			So(items[0].ID, ShouldEqual, "q1")
			So(items[0].Kind, ShouldEqual, model.KindQuestion)
			So(items[0].Title, ShouldEqual, "Why this team?")
			So(items[0].TimeLimit, ShouldEqual, 60)
			So(items[0].IsActive, ShouldBeTrue)
			So(items[1].ID, ShouldNotBeEmpty)
			So(items[1].Order, ShouldEqual, 2)
			So(doc.State.Session.CurrentInterviewItemID, ShouldEqual, "q1")
			So(doc.State.Session.CurrentQuestionID, ShouldEqual, "q1")
		})

		Convey("Then batch templates carry no ids", func() {
			cfg := doc.Batches[0].Config
			So(cfg.Judges, ShouldResemble, []model.JudgeTemplate{{Name: "Ada", Password: "pw", IsActive: true}})
			So(cfg.InterviewItems, ShouldHaveLength, 2)
			So(cfg.InterviewItems[0].Kind, ShouldEqual, model.KindQuestion)
		})
	})

	Convey("Given a version 1 document", t, func() {
		doc, err := Decode([]byte(docV1), now, seqIDs("m"))
		So(err, ShouldBeNil)

		Convey("Then live questions are appended after existing items", func() {
			So(doc.State.InterviewItems, ShouldHaveLength, 2)
			So(doc.State.InterviewItems[0].ID, ShouldEqual, "st1")
			So(doc.State.InterviewItems[1].ID, ShouldEqual, "q9")
			So(doc.State.InterviewItems[1].Title, ShouldEqual, "Weaknesses")
		})

		Convey("Then batch config questions become templates", func() {
			cfg := doc.Batches[0].Config
			So(cfg.InterviewItems, ShouldHaveLength, 1)
			So(cfg.InterviewItems[0].Title, ShouldEqual, "Strengths")
			So(cfg.InterviewItems[0].TimeLimit, ShouldEqual, 90)
		})

		Convey("Then the paused batch keeps no active pointer", func() {
			So(doc.ActiveBatchID, ShouldBeEmpty)
		})
	})
}

func TestDecodeRejects(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"not json", `{`, ErrCorrupt},
		{"null document", `null`, ErrCorrupt},
		{"future version", `{"version": 9}`, ErrUnsupportedVersion},
		{"bad version", `{"version": "two"}`, ErrCorrupt},
		{"flat without judges", `{"candidates": [], "dimensions": [], "scoreItems": []}`, ErrCorrupt},
		{"collection not a list", `{"version": 2, "state": {"candidates": [], "judges": {}, "dimensions": [], "scoreItems": [], "interviewItems": [], "session": {}}}`, ErrCorrupt},
		{"missing session", `{"version": 2, "state": {"candidates": [], "judges": [], "dimensions": [], "scoreItems": [], "interviewItems": []}}`, ErrCorrupt},
		{"two interviewing", `{"version": 2, "state": {"candidates": [{"id": "a", "status": "interviewing"}, {"id": "b", "status": "interviewing"}], "judges": [], "dimensions": [], "scoreItems": [], "interviewItems": [], "session": {}}}`, ErrCorrupt},
		{"two active batches", `{"version": 2, "activeBatchId": "x", "batches": [{"id": "x", "status": "active"}, {"id": "y", "status": "active"}], "state": {"candidates": [], "judges": [], "dimensions": [], "scoreItems": [], "interviewItems": [], "session": {}}}`, ErrCorrupt},
		{"dangling active pointer", `{"version": 2, "activeBatchId": "x", "batches": [], "state": {"candidates": [], "judges": [], "dimensions": [], "scoreItems": [], "interviewItems": [], "session": {}}}`, ErrCorrupt},
	}

	Convey("Given malformed snapshots", t, func() {
		for _, tc := range cases {
			Convey(tc.name, func() {
				_, err := Decode([]byte(tc.in), now, seqIDs("m"))
				So(errors.Is(err, tc.want), ShouldBeTrue)
			})
		}
	})
}
