package analytics

func priorMastery(cfg Config, atomID string, sc SessionContext) float64 {
	if atomID != "" {
		if m, ok := sc.AtomHistory[atomID]; ok {
			return clamp(m, 0, 1)
		}
	}
	return clamp(cfg.DefaultMastery, 0, 1)
}

// UpdateMastery moves before toward 1 on a pass and toward 0 on a fail.
// Each remediation stage visited halves, thirds, ... the step, so a
// recovered pass earns less than a clean one.
func UpdateMastery(before float64, passed bool, remediationVisits int, rate float64) float64 {
	target := 0.0
	if passed {
		target = 1.0
	}
	step := rate / float64(1+remediationVisits)
	return clamp(before+step*(target-before), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
