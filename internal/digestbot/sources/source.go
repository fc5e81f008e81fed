// Package sources retrieves the daily digest text from a prioritized list of
// redundant mirrors.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrNoMirrors is returned when a Retriever is built without any mirror.
var ErrNoMirrors = errors.New("sources: at least one mirror is required")

// Source is anything that can produce the digest text in one attempt.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Fetch makes a single attempt; no retries.
	Fetch(ctx context.Context) (string, error)
}

// Failure records one failed mirror attempt.
type Failure struct {
	Source string
	Err    error
}

// FetchError is returned when every mirror failed. It keeps all failures;
// its message is the description of the last one.
type FetchError struct {
	Failures []Failure
}

func (e *FetchError) Error() string {
	if len(e.Failures) == 0 {
		return "sources: all mirrors failed"
	}
	last := e.Failures[len(e.Failures)-1]
	if last.Err == nil {
		return fmt.Sprintf("sources: mirror %s failed", last.Source)
	}
	return last.Err.Error()
}

func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Observer is notified of every mirror attempt.
type Observer interface {
	ObserveFetch(source string, err error)
}

// Retriever tries its sources strictly in order and returns the first success.
type Retriever struct {
	sources  []Source
	observer Observer
	logger   *slog.Logger
}

// NewRetriever builds a Retriever over mirror URLs, earliest first.
func NewRetriever(client *http.Client, urls ...string) (*Retriever, error) {
	srcs := make([]Source, 0, len(urls))
	for _, u := range urls {
		srcs = append(srcs, NewMirrorSource(u, client))
	}
	return NewRetrieverFromSources(srcs...)
}

// NewRetrieverFromSources builds a Retriever over arbitrary sources.
func NewRetrieverFromSources(srcs ...Source) (*Retriever, error) {
	if len(srcs) == 0 {
		return nil, ErrNoMirrors
	}
	return &Retriever{sources: srcs, logger: slog.Default()}, nil
}

// SetObserver attaches o to every subsequent attempt.
func (r *Retriever) SetObserver(o Observer) {
	r.observer = o
}

// Sources returns the names of the configured sources in priority order.
func (r *Retriever) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Fetch returns the body of the first source that succeeds. Later sources
// are not contacted. If all fail, the error is a *FetchError.
func (r *Retriever) Fetch(ctx context.Context) (string, error) {
	var failures []Failure
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("fetch news: %w", err)
		}

		text, err := src.Fetch(ctx)
		if r.observer != nil {
			r.observer.ObserveFetch(src.Name(), err)
		}
		if err == nil {
			if len(failures) > 0 {
				r.logger.Info("mirror fallback succeeded", "source", src.Name(), "failed_before", len(failures))
			}
			return text, nil
		}

		r.logger.Warn("mirror fetch failed", "source", src.Name(), "error", err)
		failures = append(failures, Failure{Source: src.Name(), Err: err})
	}
	return "", &FetchError{Failures: failures}
}
