// Package mapper indexes site geometry into H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/solar-site-layout/internal/geo"
)

type Interface interface {
	CellForPoint(p geo.GeoPoint, res int) (string, error)
	CellsForBoundary(path []geo.GeoPoint, res int) ([]string, error)
}
