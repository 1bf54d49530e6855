package alignment

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"histokit/pkg/geometry"
)

// ReadCorrespondences parses keypoint pairs, one per line as
// "moving_x, moving_y, fixed_x, fixed_y". Lines starting with # are skipped.
func ReadCorrespondences(r io.Reader) (moving, fixed []geometry.Point2D, err error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read correspondences: %w", err)
		}
		var v [4]float64
		for i, field := range rec {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("read correspondences: record %d field %d: %w", line, i+1, err)
			}
		}
		moving = append(moving, geometry.NewPoint2D(v[0], v[1]))
		fixed = append(fixed, geometry.NewPoint2D(v[2], v[3]))
	}
	return moving, fixed, nil
}

// LoadCorrespondences reads keypoint pairs from a file.
func LoadCorrespondences(path string) (moving, fixed []geometry.Point2D, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open points: %w", err)
	}
	defer f.Close()
	return ReadCorrespondences(f)
}
