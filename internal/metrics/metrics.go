package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PostsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warbler_posts_created_total",
		Help: "Total posts created",
	})
	PostsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warbler_posts_deleted_total",
		Help: "Total posts deleted",
	})
	ModerationBlocked = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_moderation_blocked_total",
		Help: "Posts rejected by the moderation filter",
	}, []string{"rule"})
	GraphMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_graph_mutations_total",
		Help: "Follow and unfollow operations",
	}, []string{"op"})
	LikeToggles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_like_toggles_total",
		Help: "Like toggle operations by resulting state",
	}, []string{"result"})
	FeedRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warbler_feed_request_duration_seconds",
		Help:    "Feed assembly duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"feed"})
	ActivityEventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warbler_activity_events_published_total",
		Help: "Activity events published to the queue",
	})
	ActivityEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "warbler_activity_events_dropped_total",
		Help: "Activity events lost because the publish failed",
	})
)

func init() {
	prometheus.MustRegister(
		PostsCreated,
		PostsDeleted,
		ModerationBlocked,
		GraphMutations,
		LikeToggles,
		FeedRequestDuration,
		ActivityEventsPublished,
		ActivityEventsDropped,
	)
}

// Handler exposes the default registry, mounted on /metrics by the API server.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFeedDuration records one feed assembly.
func ObserveFeedDuration(feed string, start time.Time) {
	FeedRequestDuration.WithLabelValues(feed).Observe(time.Since(start).Seconds())
}
