package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// findMetric gathers the registry and returns the family with the given name.
func findMetric(reg *prometheus.Registry, name string) *dto.MetricFamily {
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should use a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(func() { NewManager() }, ShouldNotPanic)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.RecordUpdateProcessed()

			Convey("Then metric names should follow the namespace and subsystem", func() {
				mf := findMetric(registry, "test_unit_updates_processed_total")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
				So(mf.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration should panic", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestManagerRecorders(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When recording pipeline counters", func() {
			m.RecordUpdateProcessed()
			m.RecordUpdateProcessed()
			m.RecordUpdateDuplicate()
			m.RecordUpdateRejected()
			m.RecordRefresh()

			Convey("Then each counter should hold its own count", func() {
				So(findMetric(registry, "unirank_ranking_updates_processed_total").GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 2)
				So(findMetric(registry, "unirank_ranking_updates_duplicate_total").GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
				So(findMetric(registry, "unirank_ranking_updates_rejected_total").GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
				So(findMetric(registry, "unirank_ranking_refresh_total").GetMetric()[0].GetCounter().GetValue(), ShouldEqual, 1)
			})
		})

		Convey("When setting platform weights", func() {
			m.UpdatePlatformWeight("Codeforces", WeightRaw, 2.1)
			m.UpdatePlatformWeight("Codeforces", WeightFinal, 0.6)
			m.UpdatePlatformWeight("Leetcode", WeightFinal, 0.4)

			Convey("Then one series per platform and kind should exist", func() {
				mf := findMetric(registry, "unirank_ranking_platform_weight")
				So(mf, ShouldNotBeNil)
				So(len(mf.GetMetric()), ShouldEqual, 3)
			})
		})

		Convey("When setting gauges", func() {
			m.UpdateUsers(4)
			m.UpdatePlatforms(2)
			m.UpdateQueueSize(10)
			m.UpdateQueueCapacity(100)
			m.UpdateQueueUtilization(0.1)

			Convey("Then the last value should win", func() {
				So(findMetric(registry, "unirank_ranking_users").GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 4)
				So(findMetric(registry, "unirank_ranking_platforms").GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 2)
				So(findMetric(registry, "unirank_ranking_queue_utilization_ratio").GetMetric()[0].GetGauge().GetValue(), ShouldEqual, 0.1)
			})
		})

		Convey("When observing latencies", func() {
			m.RecordApplyLatency(1.5)
			m.RecordApplyLatency(2.5)
			m.RecordUpdateLag(3600)
			m.RecordHTTPRequestDuration("/leaderboard", "GET", "200", 3)

			Convey("Then histograms should count samples", func() {
				h := findMetric(registry, "unirank_ranking_apply_latency_milliseconds").GetMetric()[0].GetHistogram()
				So(h.GetSampleCount(), ShouldEqual, 2)
				So(h.GetSampleSum(), ShouldEqual, 4.0)
				lag := findMetric(registry, "unirank_ranking_update_lag_seconds").GetMetric()[0].GetHistogram()
				So(lag.GetSampleCount(), ShouldEqual, 1)
				So(lag.GetSampleSum(), ShouldEqual, 3600)
			})
		})

		Convey("When recording labelled errors", func() {
			m.RecordErrorByComponent("worker", "not_found")
			m.RecordErrorByType("not_found", "warning")
			m.RecordErrorByEndpoint("/updates", "POST", "invalid_input")
			m.RecordHTTPRequest("/updates", "POST", "400")

			Convey("Then the vectors should carry the labels", func() {
				mf := findMetric(registry, "unirank_ranking_errors_by_endpoint_total")
				So(mf, ShouldNotBeNil)
				So(len(mf.GetMetric()[0].GetLabel()), ShouldEqual, 3)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When calling every global recorder", func() {
			Convey("Then none should panic", func() {
				So(func() {
					RecordUpdateProcessed()
					RecordUpdateDuplicate()
					RecordUpdateRejected()
					RecordApplyLatency(1)
					RecordUpdateLag(0.5)
					RecordRefresh()
					UpdateUsers(1)
					UpdatePlatforms(1)
					UpdatePlatformWeight("Atcoder", WeightSoftmax, 0.2)
					UpdateQueueSize(1)
					UpdateQueueCapacity(10)
					UpdateQueueUtilization(0.1)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordWorkerError()
					RecordMirrorPublish()
					RecordMirrorError()
					RecordHTTPRequest("/stats", "GET", "200")
					RecordHTTPRequestDuration("/stats", "GET", "200", 1)
					RecordErrorByComponent("api", "internal")
					RecordErrorByType("internal", "error")
					RecordErrorByEndpoint("/stats", "GET", "internal")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(8)
					RecordSystemGCPauseTime(0.5)
				}, ShouldNotPanic)
			})

			Convey("And the values should be visible on the shared registry", func() {
				RecordMirrorPublish()
				mf := findMetric(GetRegistry(), "unirank_ranking_mirror_publish_total")
				So(mf, ShouldNotBeNil)
				So(mf.GetMetric()[0].GetCounter().GetValue(), ShouldBeGreaterThan, 0)
			})
		})
	})
}
