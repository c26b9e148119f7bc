package facematch

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// ScaleBBox maps a pixel bbox detected on a downscaled frame back to the original frame size.
func ScaleBBox(bbox []float64, scale float64) []float64 {
	if len(bbox) != 4 || scale <= 0 || scale == 1 {
		return bbox
	}
	return []float64{bbox[0] / scale, bbox[1] / scale, bbox[2] / scale, bbox[3] / scale}
}
