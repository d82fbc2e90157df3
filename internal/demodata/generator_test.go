package demodata_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/fencerpulse/internal/demodata"
	"github.com/okian/fencerpulse/internal/domain/attributes"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		ctx := context.Background()
		g := demodata.NewGenerator(demodata.WithRows(500), demodata.WithSeed(3))

		Convey("When generating", func() {
			records, labels, err := g.Generate(ctx)

			Convey("Then it should produce the requested number of labelled rows", func() {
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, 500)
				So(len(labels), ShouldEqual, 500)
			})

			Convey("Then every label should follow the scoring rule", func() {
				for i, r := range records {
					So(labels[i], ShouldEqual, demodata.Label(r))
				}
			})

			Convey("Then values should respect the clipping ranges and enumerations", func() {
				for _, r := range records {
					So(r.Age, ShouldBeBetweenOrEqual, 13, 22)
					So(r.Sprint20mS, ShouldBeBetweenOrEqual, 2.55, 4.80)
					So(r.ReactionMS, ShouldBeBetweenOrEqual, 170, 450)
					So(r.WeeklyTrainingH, ShouldBeBetweenOrEqual, 0, 12)
					So(r.Injury, ShouldBeIn, attributes.Injuries)
					So(r.Experience, ShouldBeIn, attributes.Experiences)
					So(r.Validate(), ShouldBeNil)
				}
			})

			Convey("Then the same seed should give the same dataset", func() {
				again, againLabels, err := demodata.NewGenerator(demodata.WithRows(500), demodata.WithSeed(3)).Generate(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, records)
				So(againLabels, ShouldResemble, labels)
			})
		})

		Convey("When generating with balanced labels", func() {
			records, labels, err := demodata.NewGenerator(
				demodata.WithRows(500), demodata.WithSeed(3), demodata.WithBalancedLabels(),
			).Generate(ctx)
			So(err, ShouldBeNil)

			Convey("Then every class should hold a sizeable share", func() {
				counts := map[int]int{}
				for _, l := range labels {
					counts[l]++
				}
				So(counts[demodata.Foil], ShouldBeGreaterThan, 50)
				So(counts[demodata.Epee], ShouldBeGreaterThan, 50)
				So(counts[demodata.Sabre], ShouldBeGreaterThan, 50)
			})

			Convey("Then the labels should match BalancedLabels on the same rows", func() {
				So(labels, ShouldResemble, demodata.BalancedLabels(records))
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := g.Generate(cctx)

			Convey("Then generation should stop", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestLabel(t *testing.T) {
	Convey("Given hand-picked athletes", t, func() {
		Convey("When the athlete is fast and explosive", func() {
			r := demodata.SampleRecord()
			r.Sprint20mS, r.ReactionMS, r.JumpCM = 2.6, 180, 80

			Convey("Then the rule should pick sabre", func() {
				So(demodata.Label(r), ShouldEqual, demodata.Sabre)
			})
		})

		Convey("When the athlete is slow but trains a lot", func() {
			r := demodata.SampleRecord()
			r.Sprint20mS, r.ReactionMS, r.WeeklyTrainingH, r.JumpCM = 4.4, 440, 12, 20

			Convey("Then the rule should pick foil", func() {
				So(demodata.Label(r), ShouldEqual, demodata.Foil)
			})
		})

		Convey("When the athlete is slow with long reach and endurance", func() {
			r := demodata.SampleRecord()
			r.Sprint20mS, r.ReactionMS, r.JumpCM, r.WeeklyTrainingH = 4.8, 440, 20, 0
			r.ReachCM, r.BeepLevel, r.Experience = 200, 14, "beginner"

			Convey("Then the rule should pick epee", func() {
				So(demodata.Label(r), ShouldEqual, demodata.Epee)
			})
		})
	})
}

func TestBalancedLabels(t *testing.T) {
	Convey("Given an empty batch", t, func() {
		Convey("Then no labels should be produced", func() {
			So(demodata.BalancedLabels(nil), ShouldBeEmpty)
		})
	})

	Convey("Given identical athletes", t, func() {
		records := []attributes.Record{demodata.SampleRecord(), demodata.SampleRecord()}

		Convey("Then the tie should go to the lowest class index", func() {
			So(demodata.BalancedLabels(records), ShouldResemble, []int{demodata.Foil, demodata.Foil})
		})
	})
}
