package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClusterSizeKm is the granularity of location clustering. Two points inside
// the same cell map to the same cluster key; the key is the unit of trending
// cache partitioning, not a guarantee of true adjacency within the cell size.
const ClusterSizeKm = 100.0

// kmPerDegree is the arc length of one degree on the reference sphere.
const kmPerDegree = 2 * math.Pi * EarthRadiusKm / 360

// clusterStep is the angular step (degrees) corresponding to ClusterSizeKm.
var clusterStep = ClusterSizeKm / kmPerDegree

// ClusterKey buckets a coordinate into a deterministic cell identifier by
// rounding each axis to the nearest multiple of the cluster step. Points on a
// cell boundary round half away from zero, so every point belongs to exactly
// one cell.
//
// The key encodes integer cell indices ("lat-index:lon-index"), which avoids
// float formatting drift between platforms.
func ClusterKey(lat, lon float64) string {
	i := int64(math.Round(lat / clusterStep))
	j := int64(math.Round(lon / clusterStep))
	return fmt.Sprintf("%d:%d", i, j)
}

// ClusterCenter returns the representative coordinate of the cell containing
// the given point. All points in a cell share the same center, which is the
// coordinate the trending cache scores against.
func ClusterCenter(lat, lon float64) Point {
	i := math.Round(lat / clusterStep)
	j := math.Round(lon / clusterStep)
	return Point{Lat: i * clusterStep, Lon: j * clusterStep}
}

// ParseClusterKey recovers the representative coordinate from a cluster key.
// Returns an error if the key is not in the "i:j" form produced by ClusterKey.
func ParseClusterKey(key string) (Point, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("malformed cluster key %q", key)
	}
	i, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed cluster key %q: %w", key, err)
	}
	j, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Point{}, fmt.Errorf("malformed cluster key %q: %w", key, err)
	}
	return Point{Lat: float64(i) * clusterStep, Lon: float64(j) * clusterStep}, nil
}
