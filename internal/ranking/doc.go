// Package ranking provides centralized ranking component calculations
// with calibration support for retrieval and trending features.
package ranking
