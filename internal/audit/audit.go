// Package audit looks for catalog products that probably describe the same
// item but were stored under different identity keys, and exports the
// findings for manual review.
package audit

import (
	"sort"
	"strings"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/similarity"
)

// DefaultThreshold is lower than the resolver's so that pairs the resolver
// kept apart still show up for review.
const DefaultThreshold = 0.75

// DuplicatePair is two same-brand products whose identity keys are similar.
type DuplicatePair struct {
	Brand          string  `json:"brand"`
	ProductID      uint    `json:"product_id"`
	ProductName    string  `json:"product_name"`
	NormalizedName string  `json:"normalized_name"`
	CandidateID    uint    `json:"candidate_id"`
	CandidateName  string  `json:"candidate_name"`
	CandidateNorm  string  `json:"candidate_normalized_name"`
	Score          float64 `json:"score"`
	SamePackaging  bool    `json:"same_packaging"`
	SameWeight     bool    `json:"same_weight"`
}

// FindNearDuplicates compares every pair of products of the same brand
// (case-insensitive) and returns those scoring above threshold, best first.
func FindNearDuplicates(products []models.Product, threshold float64) []DuplicatePair {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	byBrand := make(map[string][]models.Product)
	for _, p := range products {
		key := strings.ToLower(strings.TrimSpace(p.Brand))
		byBrand[key] = append(byBrand[key], p)
	}

	pairs := []DuplicatePair{}
	for _, group := range byBrand {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				score := similarity.Calculate(a.NormalizedName, b.NormalizedName)
				if score <= threshold {
					continue
				}
				pairs = append(pairs, DuplicatePair{
					Brand:          a.Brand,
					ProductID:      a.ID,
					ProductName:    a.Name,
					NormalizedName: a.NormalizedName,
					CandidateID:    b.ID,
					CandidateName:  b.Name,
					CandidateNorm:  b.NormalizedName,
					Score:          score,
					SamePackaging:  a.Specifications.Packaging == b.Specifications.Packaging,
					SameWeight:     a.Specifications.Weight == b.Specifications.Weight,
				})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].ProductID != pairs[j].ProductID {
			return pairs[i].ProductID < pairs[j].ProductID
		}
		return pairs[i].CandidateID < pairs[j].CandidateID
	})
	return pairs
}

var reportColumns = []string{
	"brand", "product_id", "product_name", "normalized_name",
	"candidate_id", "candidate_name", "candidate_normalized_name",
	"score", "same_packaging", "same_weight",
}

func (p DuplicatePair) values() []any {
	return []any{
		p.Brand, p.ProductID, p.ProductName, p.NormalizedName,
		p.CandidateID, p.CandidateName, p.CandidateNorm,
		p.Score, p.SamePackaging, p.SameWeight,
	}
}
