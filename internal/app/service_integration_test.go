package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/fencerpulse/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceHotReload(t *testing.T) {
	Convey("Given a serving instance polling an empty artifact path", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		path := filepath.Join(t.TempDir(), "model.json")

		serving := newService(path, service.WithReloadInterval(10*time.Millisecond))
		So(serving.Start(ctx), ShouldBeNil)
		defer serving.Stop()
		So(serving.Model(), ShouldBeNil)

		Convey("When another process trains into the same path", func() {
			trainer := newService(path)
			records, labels := demoRows(150)
			_, err := trainer.Train(ctx, records, labels)
			So(err, ShouldBeNil)

			Convey("Then the serving instance should pick the model up", func() {
				deadline := time.Now().Add(5 * time.Second)
				for serving.Model() == nil && time.Now().Before(deadline) {
					time.Sleep(10 * time.Millisecond)
				}
				So(serving.Model(), ShouldNotBeNil)
				want, err := trainer.Recommend(ctx, trainer.SampleAttributes(), 0, 0)
				So(err, ShouldBeNil)
				got, err := serving.Recommend(ctx, serving.SampleAttributes(), 0, 0)
				So(err, ShouldBeNil)
				So(got.Top, ShouldResemble, want.Top)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a trained service", t, func() {
		ctx := context.Background()
		svc := newService(filepath.Join(t.TempDir(), "model.json"))
		records, labels := demoRows(150)
		_, err := svc.Train(ctx, records, labels)
		So(err, ShouldBeNil)

		Convey("When recommending from many goroutines while reloading", func() {
			var (
				wg       sync.WaitGroup
				failures atomic.Int64
				served   atomic.Int64
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 50; j++ {
						rec, err := svc.Recommend(ctx, svc.SampleAttributes(), 0, 0)
						if err != nil || len(rec.Top) != 3 {
							failures.Add(1)
							continue
						}
						served.Add(1)
					}
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					if err := svc.Reload(ctx); err != nil {
						failures.Add(1)
					}
				}
			}()
			wg.Wait()

			Convey("Then every call should succeed", func() {
				So(failures.Load(), ShouldEqual, int64(0))
				So(served.Load(), ShouldEqual, int64(400))
				So(svc.GetStats()["predictions"], ShouldEqual, int64(400))
			})
		})
	})
}
