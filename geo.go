package hstore

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Geometry columns hold PostGIS geometries. Values travel as WKT text both
// ways: bound through ST_GeomFromText and read back with ST_AsText.

func geometryText(g orb.Geometry) string {
	return wkt.MarshalString(g)
}

func geomFromText(b *sqlBuilder, wktText any, srid int) string {
	return fmt.Sprintf("ST_GeomFromText(%s, %s)", b.Arg(wktText), b.Arg(srid))
}

func parseGeometry(s string) (orb.Geometry, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("parsing geometry %q: %w", s, err)
	}
	return g, nil
}
