package onnx

import (
	"sort"

	"bloodcell-inference-service/internal/core/domain"
)

type candidate struct {
	box     domain.BoundingBox
	classID int
	score   float64
}

// decodeYOLO reads a YOLOv8 head laid out as [4+nc][anchors] (cx, cy, w, h,
// then one score per class) and keeps anchors whose best score exceeds conf.
// Boxes stay in letterboxed input coordinates.
func decodeYOLO(out []float32, numClasses, anchors int, conf float64) []candidate {
	if numClasses <= 0 || anchors <= 0 || len(out) < (4+numClasses)*anchors {
		return nil
	}

	var cands []candidate
	for i := 0; i < anchors; i++ {
		best := -1
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			if s := out[(4+c)*anchors+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || float64(bestScore) <= conf {
			continue
		}

		cx := float64(out[i])
		cy := float64(out[anchors+i])
		w := float64(out[2*anchors+i])
		h := float64(out[3*anchors+i])
		cands = append(cands, candidate{
			box:     domain.BoundingBox{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
			classID: best,
			score:   float64(bestScore),
		})
	}
	return cands
}

// nonMaxSuppression is greedy and class-aware: a box only suppresses boxes of
// its own class. The result is ordered by confidence, highest first.
func nonMaxSuppression(dets []domain.Detection, iou float64, maxDet int) []domain.Detection {
	sorted := make([]domain.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]domain.Detection, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		if maxDet > 0 && len(kept) == maxDet {
			break
		}
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != sorted[i].ClassID {
				continue
			}
			if sorted[i].BBox.IoU(sorted[j].BBox) > iou {
				suppressed[j] = true
			}
		}
	}
	return kept
}
