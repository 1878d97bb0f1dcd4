package mirror_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/okian/unirank/internal/adapters/mirror"
	"github.com/okian/unirank/internal/domain/types"
	"github.com/okian/unirank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestMembers(t *testing.T) {
	Convey("Given leaderboard entries", t, func() {
		entries := []types.Entry{
			{Rank: 1, UserID: "u2", TotalRating: 1800},
			{Rank: 2, UserID: "u4", TotalRating: 1725, CourseBonus: 10},
		}

		Convey("When converting to sorted set members", func() {
			zs := mirror.Members(entries)

			Convey("Then each user should be scored by total rating", func() {
				So(len(zs), ShouldEqual, 2)
				So(zs[0].Member, ShouldEqual, "u2")
				So(zs[0].Score, ShouldEqual, 1800)
				So(zs[1].Member, ShouldEqual, "u4")
				So(zs[1].Score, ShouldEqual, 1725)
			})
		})

		Convey("When there are no entries", func() {
			Convey("Then no members should be produced", func() {
				So(mirror.Members(nil), ShouldBeEmpty)
			})
		})
	})
}

func TestRedisMirror(t *testing.T) {
	Convey("Given a mirror", t, func() {
		Convey("When built with options", func() {
			m := mirror.Dial("127.0.0.1:6379", mirror.WithKey("board"), mirror.WithLogger(logger.Get()))
			defer m.Close()

			Convey("Then keys should derive from the configured key", func() {
				So(m.Key(), ShouldEqual, "board")
				So(m.MetaKey(), ShouldEqual, "board:meta")
			})
		})

		Convey("When Redis is unreachable", func() {
			client := redis.NewClient(&redis.Options{
				Addr:        "127.0.0.1:1",
				DialTimeout: 100 * time.Millisecond,
				MaxRetries:  -1,
			})
			m := mirror.New(client)
			defer m.Close()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := m.Publish(ctx, []types.Entry{{Rank: 1, UserID: "u1", TotalRating: 1500}})

			Convey("Then Publish should wrap the failure in ErrPublish", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, mirror.ErrPublish), ShouldBeTrue)
				So(errors.Is(m.Ping(ctx), mirror.ErrPublish), ShouldBeTrue)
			})
		})
	})
}

func TestRedisMirror_Publish(t *testing.T) {
	Convey("Given a mirror backed by an in-process Redis", t, func() {
		srv := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
		published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		m := mirror.New(client, mirror.WithKey("board"), mirror.WithClock(func() time.Time { return published }))
		defer m.Close()
		ctx := context.Background()

		So(m.Publish(ctx, []types.Entry{
			{Rank: 1, UserID: "u2", TotalRating: 1800},
			{Rank: 2, UserID: "u4", TotalRating: 1725, CourseBonus: 10},
			{Rank: 3, UserID: "u1", TotalRating: 1200.5},
		}), ShouldBeNil)

		Convey("When the first board is read back", func() {
			zs, err := client.ZRangeWithScores(ctx, "board", 0, -1).Result()
			So(err, ShouldBeNil)
			meta, err := client.HGetAll(ctx, "board:meta").Result()
			So(err, ShouldBeNil)

			Convey("Then every user should be scored by total rating", func() {
				So(zs, ShouldResemble, []redis.Z{
					{Score: 1200.5, Member: "u1"},
					{Score: 1725, Member: "u4"},
					{Score: 1800, Member: "u2"},
				})
				So(meta, ShouldResemble, map[string]string{
					"size":       "3",
					"updated_at": published.Format(time.RFC3339Nano),
				})
			})
		})

		Convey("When a smaller board is published", func() {
			published = published.Add(time.Minute)
			So(m.Publish(ctx, []types.Entry{{Rank: 1, UserID: "u9", TotalRating: 1900}}), ShouldBeNil)

			zs, err := client.ZRangeWithScores(ctx, "board", 0, -1).Result()
			So(err, ShouldBeNil)
			meta, err := client.HGetAll(ctx, "board:meta").Result()
			So(err, ShouldBeNil)

			Convey("Then it should replace the previous board entirely", func() {
				So(zs, ShouldResemble, []redis.Z{{Score: 1900, Member: "u9"}})
				So(meta["size"], ShouldEqual, "1")
				So(meta["updated_at"], ShouldEqual, "2024-03-01T12:01:00Z")
			})
		})

		Convey("When an empty board is published", func() {
			So(m.Publish(ctx, nil), ShouldBeNil)

			Convey("Then the sorted set should be gone and the size zero", func() {
				n, err := client.Exists(ctx, "board").Result()
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				size, err := client.HGet(ctx, "board:meta", "size").Result()
				So(err, ShouldBeNil)
				So(size, ShouldEqual, "0")
			})
		})
	})
}
