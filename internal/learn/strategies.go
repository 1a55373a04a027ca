package learn

import (
	"math"
	"sort"

	"github.com/belegwerk/docpipe/internal/textutil"
)

// strategyResult is the tagged outcome of one prediction strategy.
type strategyResult struct {
	kind       string
	prediction string
	confidence float64
}

const (
	strategyFrequency = "frequency"
	strategyClassify  = "classifier"
	strategyNeighbor  = "nearest_neighbor"
)

// trained observation as seen by the derived models.
type sample struct {
	raw   string
	value string
	feats [featureDim]float64
}

// frequencyModel keeps per-value occurrence counts plus the raw texts each
// value was observed under.
type frequencyModel struct {
	counts map[string]int
	byText []sample
}

func newFrequencyModel(samples []sample) *frequencyModel {
	m := &frequencyModel{counts: map[string]int{}, byText: samples}
	for _, s := range samples {
		m.counts[s.value]++
	}
	return m
}

// predict finds the prior observation whose raw text is most similar to the
// query and scores its corrected value by similarity x log(frequency+1),
// capped at 0.9.
func (m *frequencyModel) predict(raw string) strategyResult {
	best := strategyResult{kind: strategyFrequency}
	var bestSim float64
	var bestValue string
	for _, s := range m.byText {
		if sim := textutil.Similarity(raw, s.raw); sim > bestSim {
			bestSim, bestValue = sim, s.value
		}
	}
	if bestValue == "" {
		return best
	}
	score := bestSim * math.Log(float64(m.counts[bestValue])+1)
	best.prediction = bestValue
	best.confidence = math.Min(score, 0.9)
	return best
}

// classifierModel is a Gaussian per-class model over the feature space: one
// mean/variance profile per corrected value.
type classifierModel struct {
	classes map[string]*gaussianClass
	trained int
}

type gaussianClass struct {
	n        int
	mean     [featureDim]float64
	variance [featureDim]float64
}

func newClassifierModel(samples []sample) *classifierModel {
	m := &classifierModel{classes: map[string]*gaussianClass{}, trained: len(samples)}
	grouped := map[string][]sample{}
	for _, s := range samples {
		grouped[s.value] = append(grouped[s.value], s)
	}
	for value, group := range grouped {
		c := &gaussianClass{n: len(group)}
		for _, s := range group {
			for i := range c.mean {
				c.mean[i] += s.feats[i]
			}
		}
		for i := range c.mean {
			c.mean[i] /= float64(len(group))
		}
		for _, s := range group {
			for i := range c.variance {
				d := s.feats[i] - c.mean[i]
				c.variance[i] += d * d
			}
		}
		for i := range c.variance {
			c.variance[i] = c.variance[i]/float64(len(group)) + 1e-3 // smoothing
		}
		m.classes[value] = c
	}
	return m
}

// predict computes class log-likelihoods with a frequency prior and
// converts to a posterior via softmax. Confidence scales with training-set
// size and is capped at 0.7.
func (m *classifierModel) predict(feats [featureDim]float64) strategyResult {
	res := strategyResult{kind: strategyClassify}
	if len(m.classes) == 0 {
		return res
	}
	type scored struct {
		value string
		logp  float64
	}
	all := make([]scored, 0, len(m.classes))
	for value, c := range m.classes {
		logp := math.Log(float64(c.n) / float64(m.trained))
		for i := range c.mean {
			d := feats[i] - c.mean[i]
			logp += -0.5*math.Log(2*math.Pi*c.variance[i]) - d*d/(2*c.variance[i])
		}
		all = append(all, scored{value, logp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].logp > all[j].logp })

	// softmax over log-likelihoods, anchored at the maximum for stability
	var total float64
	for _, s := range all {
		total += math.Exp(s.logp - all[0].logp)
	}
	posterior := 1 / total
	sizeFactor := math.Min(1, float64(m.trained)/10)
	res.prediction = all[0].value
	res.confidence = math.Min(posterior*sizeFactor, 0.7)
	return res
}

// nearestNeighbors votes over the k = min(3, n) closest prior observations
// in feature space, weighted by inverse distance.
func nearestNeighbors(samples []sample, feats [featureDim]float64) strategyResult {
	res := strategyResult{kind: strategyNeighbor}
	if len(samples) == 0 {
		return res
	}
	type neighbor struct {
		value string
		dist  float64
	}
	neighbors := make([]neighbor, 0, len(samples))
	for _, s := range samples {
		neighbors = append(neighbors, neighbor{s.value, euclidean(s.feats, feats)})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })

	k := 3
	if len(neighbors) < k {
		k = len(neighbors)
	}
	votes := map[string]float64{}
	var total float64
	for _, nb := range neighbors[:k] {
		w := 1 / (nb.dist + 1e-6)
		votes[nb.value] += w
		total += w
	}
	var bestValue string
	var bestWeight float64
	for value, w := range votes {
		if w > bestWeight || (w == bestWeight && value < bestValue) {
			bestValue, bestWeight = value, w
		}
	}
	res.prediction = bestValue
	res.confidence = bestWeight / total
	return res
}
