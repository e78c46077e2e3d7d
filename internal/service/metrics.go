package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storyGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aitale_story_generations_total",
		Help: "Total number of finished story generations by result status.",
	}, []string{"status"})
	storyGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aitale_story_generation_duration_seconds",
		Help:    "Duration of the background story generation task.",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})
	storyPagesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_story_pages_generated_total",
		Help: "Total number of pages produced by story generation.",
	})
	imagePromptFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_image_prompt_fallbacks_total",
		Help: "Total number of pages that got the fallback illustration prompt.",
	})
	imageGenerationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_image_generations_total",
		Help: "Total number of successfully generated page illustrations.",
	})
	imageGenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_image_generation_failures_total",
		Help: "Total number of failed background page illustration tasks.",
	})
	blobUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_image_blob_upload_failures_total",
		Help: "Total number of images that could not be copied to blob storage.",
	})
)
