package logic

// Hidden activation bits. Each one records a classifier threshold that fired.
const (
	HiddenGreen  uint8 = 1 << 0
	HiddenHeight uint8 = 1 << 1
	HiddenNear   uint8 = 1 << 2
)

// Classification is the per-frame harvest verdict. It holds until the next
// frame completes.
type Classification struct {
	HiddenBits   uint8
	HarvestReady bool
	Valid        bool
	Features     FrameFeatures
	Distance     DistanceEstimate
}

// ClassifyHarvest judges a finished frame. A distance estimate that was never
// measured cannot count as near.
func ClassifyHarvest(feats FrameFeatures, dist DistanceEstimate, th ClassifierThresholds) Classification {
	var bits uint8
	if feats.AvgGreen >= th.GreenMin {
		bits |= HiddenGreen
	}
	if feats.RowCount > 0 && feats.RowCount >= th.RowsMin {
		bits |= HiddenHeight
	}
	if dist.Valid && dist.Class <= th.NearClassMax {
		bits |= HiddenNear
	}

	return Classification{
		HiddenBits:   bits,
		HarvestReady: bits == HiddenGreen|HiddenHeight|HiddenNear,
		Valid:        true,
		Features:     feats,
		Distance:     dist,
	}
}
