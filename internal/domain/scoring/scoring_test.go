package scoring_test

import (
	"context"
	"testing"

	"github.com/okian/modelmarket/internal/domain/model"
	"github.com/okian/modelmarket/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeightedScorer_Score(t *testing.T) {
	Convey("Given a scorer with equal weights", t, func() {
		scorer := scoring.NewWeightedScorer()
		ctx := context.Background()

		Convey("When all metrics are at their maximum", func() {
			res, err := scorer.Score(ctx, scoring.Input{
				AssetID: 7,
				Metrics: model.Metrics{
					RewardRate:        uint64(model.MustParseEther("1")),
					CompletionRate:    100,
					ContributionScore: uint64(model.MustParseEther("1")),
				},
			})

			Convey("Then the score is 100", func() {
				So(err, ShouldBeNil)
				So(res.AssetID, ShouldEqual, model.AssetID(7))
				So(res.Score, ShouldAlmostEqual, 100, 1e-9)
			})
		})

		Convey("When metrics are zero", func() {
			res, err := scorer.Score(ctx, scoring.Input{AssetID: 1})
			So(err, ShouldBeNil)
			So(res.Score, ShouldEqual, 0.0)
		})

		Convey("When reward exceeds one whole unit", func() {
			res, err := scorer.Score(ctx, scoring.Input{
				Metrics: model.Metrics{RewardRate: uint64(model.MustParseEther("5"))},
			})

			Convey("Then it is capped", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldAlmostEqual, 100.0/3, 1e-9)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scorer.Score(cctx, scoring.Input{})
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given weights from configuration", t, func() {
		scorer := scoring.NewWeightedScorer(scoring.WithWeightsFromConfig(map[string]float64{
			scoring.MetricRewardRate:     2,
			scoring.MetricCompletionRate: 1,
			"latency":                    5,
		}, 1))

		Convey("Then unknown metrics are ignored and missing ones use the fallback", func() {
			So(scorer.Weight(scoring.MetricRewardRate), ShouldEqual, 2.0)
			So(scorer.Weight(scoring.MetricContributionScore), ShouldEqual, 1.0)
			So(scorer.Weight("latency"), ShouldEqual, 0.0)
		})

		Convey("When scoring 0.8 reward, 90% completion and 0.6 contribution", func() {
			res, err := scorer.Score(context.Background(), scoring.Input{
				Metrics: model.Metrics{
					RewardRate:        uint64(model.MustParseEther("0.8")),
					CompletionRate:    90,
					ContributionScore: uint64(model.MustParseEther("0.6")),
				},
			})

			Convey("Then the weighted mean is applied", func() {
				So(err, ShouldBeNil)
				// (2*0.8 + 1*0.9 + 1*0.6) / 4 * 100
				So(res.Score, ShouldAlmostEqual, 77.5, 1e-9)
			})
		})
	})
}
