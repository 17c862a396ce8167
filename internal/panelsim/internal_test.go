package panelsim

import (
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerateSubmissions(t *testing.T) {
	Convey("Given two judges, three candidates and one inactive dimension", t, func() {
		judges := []model.Judge{{ID: "j1"}, {ID: "j2"}}
		cands := []model.Candidate{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}}
		dims := []model.ScoringDimension{
			{ID: "d1", MaxScore: 10, IsActive: true},
			{ID: "d2", MaxScore: 25, IsActive: true},
			{ID: "off", MaxScore: 10},
		}

		subs := generateSubmissions(judges, cands, dims)

		Convey("Then every pair is scored within bounds on active dimensions", func() {
			So(subs, ShouldHaveLength, 6)
			for _, s := range subs {
				So(s.DimensionScores, ShouldHaveLength, 2)
				So(s.DimensionScores, ShouldNotContainKey, "off")
				So(s.DimensionScores["d1"], ShouldBeBetweenOrEqual, 0, 10)
				So(s.DimensionScores["d2"], ShouldBeBetweenOrEqual, 0, 25)
			}
		})
	})
}

func TestQuantize(t *testing.T) {
	Convey("Given raw values", t, func() {
		So(quantize(7.3, 10), ShouldEqual, 7.5)
		So(quantize(7.2, 10), ShouldEqual, 7)
		So(quantize(12, 10), ShouldEqual, 10)
		So(quantize(-1, 10), ShouldEqual, 0)
	})
}

func TestVerifyOrdering(t *testing.T) {
	Convey("Given leaderboards", t, func() {
		good := []types.Entry{{Rank: 1, FinalScore: 90}, {Rank: 2, FinalScore: 90}, {Rank: 3, FinalScore: 40}}
		So(verifyOrdering(good), ShouldBeNil)

		unsorted := []types.Entry{{Rank: 1, FinalScore: 40}, {Rank: 2, FinalScore: 90}}
		So(verifyOrdering(unsorted), ShouldNotBeNil)

		gap := []types.Entry{{Rank: 1, FinalScore: 90}, {Rank: 3, FinalScore: 40}}
		So(verifyOrdering(gap), ShouldNotBeNil)
	})
}

func TestActiveJudges(t *testing.T) {
	Convey("Given a mix of active and disabled judges", t, func() {
		all := []model.Judge{{ID: "a", IsActive: true}, {ID: "b"}, {ID: "c", IsActive: true}, {ID: "d", IsActive: true}}

		So(activeJudges(all, 0), ShouldHaveLength, 3)
		So(activeJudges(all, 2), ShouldHaveLength, 2)
		So(activeJudges(all, 2)[1].ID, ShouldEqual, "c")
	})
}
