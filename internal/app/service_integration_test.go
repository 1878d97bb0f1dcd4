package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	service "github.com/okian/unirank/internal/app"
	"github.com/okian/unirank/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

// waitForUsers polls until the leaderboard holds n users or the deadline passes.
func waitForUsers(svc *service.Service, n int) int {
	deadline := time.Now().Add(5 * time.Second)
	for {
		entries, _ := svc.TopN(context.Background(), n+1)
		if len(entries) >= n || time.Now().After(deadline) {
			return len(entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with the default catalogue", t, func() {
		svc := service.New(
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
			service.WithRefreshSchedule("@every 1h"),
			service.WithPlatforms([]service.PlatformSpec{
				{Name: "Codeforces", MaxRating: 3000, Calibration: &service.Calibration{Difficulty: 2100, Participation: 0.8}},
				{Name: "Leetcode", MaxRating: 2500, Calibration: &service.Calibration{Difficulty: 2100, Participation: 0.8}},
				{Name: "CodeChef", MaxRating: 1800, Calibration: &service.Calibration{Difficulty: 3100, Participation: 0.5}},
			}),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When snapshots are submitted end-to-end", func() {
			subs := []service.Submission{
				{UpdateID: "cf-1", Platform: "Codeforces", Ratings: map[string]float64{"alice": 2400, "bob": 1900}},
				{UpdateID: "lc-1", Platform: "Leetcode", Ratings: map[string]float64{"bob": 2200, "carol": 1700}},
				{UpdateID: "cc-1", Platform: "CodeChef", Ratings: map[string]float64{"alice": 1600, "dave": 1200}},
			}
			for _, sub := range subs {
				res, err := svc.Submit(ctx, sub)
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeFalse)
			}
			users := waitForUsers(svc, 4)

			Convey("Then every user should be ranked in descending order", func() {
				So(users, ShouldEqual, 4)
				entries, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				for i := 1; i < len(entries); i++ {
					So(entries[i-1].TotalRating, ShouldBeGreaterThanOrEqualTo, entries[i].TotalRating)
					So(entries[i].Rank, ShouldEqual, i+1)
				}
			})

			Convey("And calibrated signals should have been applied", func() {
				for _, p := range svc.Platforms(ctx) {
					if p.Name == "CodeChef" {
						So(p.Difficulty, ShouldAlmostEqual, 3100.0/1800.0, 1e-9)
						So(p.Participation, ShouldEqual, 0.5)
					}
				}
			})

			Convey("And a replayed update should be dropped", func() {
				res, err := svc.Submit(ctx, subs[0])
				So(err, ShouldBeNil)
				So(res.Duplicate, ShouldBeTrue)
			})

			Convey("And stats should reflect the pipeline", func() {
				stats := svc.GetStats()
				So(stats["users"], ShouldEqual, 4)
				So(stats["platforms"], ShouldEqual, 3)
				So(stats["dedupeEntries"], ShouldEqual, int64(3))
				So(stats["nextRefresh"], ShouldNotBeNil)
			})
		})

		Convey("When many snapshots race in from concurrent collectors", func() {
			errs := make(chan error, 50)
			for i := 0; i < 50; i++ {
				go func(i int) {
					_, err := svc.Submit(ctx, service.Submission{
						UpdateID: fmt.Sprintf("cf-%d", i),
						Platform: "Codeforces",
						Ratings:  map[string]float64{fmt.Sprintf("user-%02d", i): float64(1000 + 10*i)},
					})
					errs <- err
				}(i)
			}
			var failed int
			for i := 0; i < 50; i++ {
				if err := <-errs; err != nil {
					failed++
				}
			}
			users := waitForUsers(svc, 50)

			Convey("Then all of them should be applied by the single writer", func() {
				So(failed, ShouldEqual, 0)
				So(users, ShouldEqual, 50)
				p := svc.Platforms(ctx)
				for _, v := range p {
					if v.Name == "Codeforces" {
						So(v.Updates, ShouldEqual, 50)
					}
				}
			})
		})

		Convey("When the service is stopped with pending work", func() {
			_, err := svc.Submit(ctx, service.Submission{UpdateID: "late", Platform: "Leetcode", Ratings: map[string]float64{"erin": 1500}})
			So(err, ShouldBeNil)
			svc.Stop()

			Convey("Then pending updates should be drained first", func() {
				_, err := svc.Rank(ctx, "erin")
				So(err, ShouldBeNil)
			})

			Convey("And new submissions should be refused", func() {
				_, err := svc.Submit(ctx, service.Submission{Platform: "Leetcode", Ratings: map[string]float64{"x": 1}})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, err = svc.Rank(ctx, "x")
				So(errors.Is(err, ranking.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}
