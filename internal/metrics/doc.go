// Package metrics provides observability hooks for repository polling.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	repo, err := repository.New(repository.Options{
//	    Directory: dir,
//	    Recorder:  metrics.NewPrometheusRecorder(reg),
//	})
//
// PrometheusRecorder registers its collectors on the registry it is given and
// HTTPHandler exposes that registry for scraping.
package metrics
