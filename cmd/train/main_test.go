package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/fencerpulse/internal/adapters/repository"
	"github.com/okian/fencerpulse/internal/config"
	"github.com/okian/fencerpulse/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestCommands(t *testing.T) {
	convey.Convey("Given the train command tree", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		cfg := config.New()
		cfg.TrainMaxIter = 100
		artifact := filepath.Join(dir, "model.json")
		table := filepath.Join(dir, "train.csv")
		var out bytes.Buffer
		dispatch := func(args ...string) error {
			return newCommand(cfg, &out).Dispatch(ctx, args)
		}

		convey.Convey("When fitting on demo data and exporting it", func() {
			err := dispatch("fit", "-demo", "-balanced", "-rows", "300", "-out", artifact, "-export-csv", table)

			convey.Convey("Then the artifact and the table should exist", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "rows: 300")
				convey.So(out.String(), convey.ShouldContainSubstring, "training accuracy:")
				convey.So(out.String(), convey.ShouldContainSubstring, "class foil:")
				m, err := repository.NewFileStore(artifact).Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(m.Metadata().Rows, convey.ShouldEqual, 300)
				convey.So(m.Metadata().Params.MaxIter, convey.ShouldEqual, 100)
				_, err = os.Stat(table)
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("And the exported table should train again", func() {
				out.Reset()
				err := dispatch("fit", "-data", table, "-out", filepath.Join(dir, "other.json"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "rows: 300")
			})
		})

		convey.Convey("When writing a demo workbook", func() {
			book := filepath.Join(dir, "athletes.xlsx")
			err := dispatch("demo", "-balanced", "-rows", "150", "-out", book)

			convey.Convey("Then it should be trainable", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "wrote 150 rows")
				convey.So(dispatch("fit", "-data", book, "-out", artifact), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the source flags are wrong", func() {
			convey.Convey("Then fit should want exactly one source", func() {
				convey.So(errors.Is(dispatch("fit"), errUsage), convey.ShouldBeTrue)
				convey.So(errors.Is(dispatch("fit", "-demo", "-data", table), errUsage), convey.ShouldBeTrue)
				convey.So(errors.Is(dispatch("demo"), errUsage), convey.ShouldBeTrue)
			})

			convey.Convey("Then an unknown flag should be rejected", func() {
				convey.So(dispatch("fit", "-bogus"), convey.ShouldNotBeNil)
				convey.So(dispatch("demo", "-out", table, "-bogus"), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the data file is missing", func() {
			err := dispatch("fit", "-data", filepath.Join(dir, "nope.csv"), "-out", artifact)

			convey.Convey("Then it should fail without writing an artifact", func() {
				convey.So(err, convey.ShouldNotBeNil)
				_, statErr := os.Stat(artifact)
				convey.So(os.IsNotExist(statErr), convey.ShouldBeTrue)
			})
		})
	})
}
