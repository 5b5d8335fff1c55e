package spatial

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/serjvanilla/go-overpass"
)

// OverpassShoreline fetches coastline geometry from an Overpass API endpoint
type OverpassShoreline struct {
	client  *overpass.Client
	timeout time.Duration
}

// NewOverpassShoreline creates a shoreline source for endpoint
func NewOverpassShoreline(endpoint string, timeout time.Duration) *OverpassShoreline {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassShoreline{
		client:  &client,
		timeout: timeout,
	}
}

// FetchShoreline returns the nodes of every natural=coastline way intersecting bounds
func (o *OverpassShoreline) FetchShoreline(ctx context.Context, bounds Bounds) ([]Point, error) {
	query := fmt.Sprintf(`
		[out:json];
		(
			way["natural"="coastline"](%s);
		);
		out body;
		>;
		out skel qt;
	`, bounds.Overpass())

	result, err := o.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute coastline query: %w", err)
	}

	ids := make([]int64, 0, len(result.Nodes))
	for id := range result.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	points := make([]Point, 0, len(ids))
	for _, id := range ids {
		node := result.Nodes[id]
		points = append(points, Point{Lat: node.Lat, Lng: node.Lon})
	}
	return points, nil
}

// executeQuery runs the query, giving up when ctx ends first. The client has no
// context support, so an abandoned query finishes in the background.
func (o *OverpassShoreline) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := o.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", out.err)
		}
		return &out.result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query abandoned: %w", ctx.Err())
	}
}
