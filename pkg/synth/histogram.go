package synth

import (
	"github.com/aszhur/loadgen/pkg/protocol"
	"github.com/aszhur/loadgen/pkg/recipe"
)

const (
	minCentroids = 1
	maxCentroids = 5
)

// composeHistogram draws a uniform [1,5] centroid count, scales total
// count with multiplier, and samples centroid means from the value
// distribution.
func (s *Synthesizer) composeHistogram(r *recipe.Recipe, now int64, source string, tags map[string]string, multiplier float64) protocol.Record {
	n := minCentroids + int(s.src.Float64()*float64(maxCentroids-minCentroids+1))
	if n > maxCentroids {
		n = maxCentroids
	}
	baseTotal := 20
	totalCount := int(float64(baseTotal*n) * multiplier)
	if totalCount < n {
		totalCount = n
	}
	perCentroid := totalCount / n
	remainder := totalCount - perCentroid*n

	centroids := make([]protocol.Centroid, 0, n)
	for i := 0; i < n; i++ {
		count := perCentroid
		if i == n-1 {
			count += remainder
		}
		centroids = append(centroids, protocol.Centroid{
			Count: count,
			Mean:  s.valueSampler.Sample(s.src),
		})
	}

	return protocol.Record{
		Kind:        protocol.KindHistogram,
		Name:        r.MetricName,
		Timestamp:   now,
		Source:      source,
		Tags:        tags,
		Granularity: "M",
		Centroids:   centroids,
	}
}
