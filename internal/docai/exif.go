package docai

import (
	"bytes"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

// gpsFromExif reads the photo's GPS position. ok is false when the image has
// no EXIF block or no GPS tags.
func gpsFromExif(data []byte) (lat, lon float64, ok bool) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	lat, lon, err = x.LatLong()
	if err != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, false
	}
	return round7(lat), round7(lon), true
}

func round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
