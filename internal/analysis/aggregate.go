package analysis

import "sort"

// minFramesFor3D is the minimum sampled frame count for a clip to be
// considered reconstructable.
const minFramesFor3D = 10

// analyzeCameraMotion estimates inter-frame camera motion from the
// luma grids of consecutive sampled frames.
func analyzeCameraMotion(grids []lumaGrid) CameraMotion {
	if len(grids) < 2 {
		return CameraMotion{}
	}

	magnitudes := make([]float64, 0, len(grids)-1)
	for i := 1; i < len(grids); i++ {
		magnitudes = append(magnitudes, motionMagnitude(grids[i-1], grids[i]))
	}

	var sum, maxM float64
	for _, m := range magnitudes {
		sum += m
		if m > maxM {
			maxM = m
		}
	}
	avg := sum / float64(len(magnitudes))

	var variance float64
	for _, m := range magnitudes {
		d := m - avg
		variance += d * d
	}
	variance /= float64(len(magnitudes))

	return CameraMotion{
		Magnitudes: magnitudes,
		Summary: MotionSummary{
			AvgMotion:      avg,
			MaxMotion:      maxM,
			MotionVariance: variance,
		},
	}
}

// buildEnvironmentLayout merges per-frame analyses into a scene-level
// summary.
func buildEnvironmentLayout(frames []FrameAnalysis) EnvironmentLayout {
	hasDepth, hasObjects := false, false
	for _, f := range frames {
		hasDepth = hasDepth || f.Depth != nil
		hasObjects = hasObjects || f.Objects != nil
	}

	layout := EnvironmentLayout{
		SceneElements: sceneElements(frames),
		Hints: ReconstructionHints{
			HasDepthData:  hasDepth,
			HasObjectData: hasObjects,
			FrameCount:    len(frames),
			SuitableFor3D: len(frames) > minFramesFor3D && hasDepth,
		},
	}
	if len(frames) == 0 {
		return layout
	}

	layout.DominantPalette = mergePalettes(frames)

	var avg Lighting
	for _, f := range frames {
		avg.Brightness += f.Lighting.Brightness
		avg.Contrast += f.Lighting.Contrast
		avg.Saturation += f.Lighting.Saturation
	}
	n := float64(len(frames))
	avg.Brightness /= n
	avg.Contrast /= n
	avg.Saturation /= n
	avg.IsDark = avg.Brightness < darkThreshold
	avg.IsBright = avg.Brightness > brightThreshold
	avg.IsHighContrast = avg.Contrast > highContrastThreshold
	layout.AvgLighting = avg

	return layout
}

// sceneElements aggregates detected labels across the clip: how many
// frames each label appears in, average and peak instance counts.
func sceneElements(frames []FrameAnalysis) map[string]ElementStats {
	counts := map[string][]int{}
	for _, f := range frames {
		if f.Objects == nil {
			continue
		}
		for label, n := range f.Objects.CountByLabel {
			counts[label] = append(counts[label], n)
		}
	}
	if len(counts) == 0 {
		return nil
	}

	elements := make(map[string]ElementStats, len(counts))
	for label, ns := range counts {
		sum, maxN := 0, 0
		for _, n := range ns {
			sum += n
			if n > maxN {
				maxN = n
			}
		}
		elements[label] = ElementStats{
			Frequency: len(ns),
			AvgCount:  float64(sum) / float64(len(ns)),
			MaxCount:  maxN,
		}
	}
	return elements
}

// mergePalettes averages each color's share across the clip and keeps
// the top entries.
func mergePalettes(frames []FrameAnalysis) []ColorShare {
	shares := map[[3]int]float64{}
	for _, f := range frames {
		for _, c := range f.DominantColors {
			shares[c.RGB] += c.Percentage
		}
	}

	merged := make([]ColorShare, 0, len(shares))
	for rgb, total := range shares {
		merged = append(merged, ColorShare{
			RGB:        rgb,
			Percentage: total / float64(len(frames)),
		})
	}

	// Highest average share first; deterministic order for equal shares.
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Percentage != merged[j].Percentage {
			return merged[i].Percentage > merged[j].Percentage
		}
		return less(merged[i].RGB, merged[j].RGB)
	})

	if len(merged) > paletteSize {
		merged = merged[:paletteSize]
	}
	return merged
}

func less(a, b [3]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
