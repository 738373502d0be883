package search

import (
	"time"

	"github.com/octobees/provider-directory/internal/entity"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }
func ptrBool(v bool) *bool        { return &v }

// landSurveyors mirrors the Patna/Noida mock catalogue used by the web front-end.
func landSurveyors() []entity.Provider {
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return []entity.Provider{
		{
			ID:           "1",
			Name:         "Rajesh Kumar",
			BusinessName: "Kumar Land Surveyors",
			Category:     "land-surveyor",
			SubCategory:  "cadastral",
			Location:     entity.Location{City: "Patna", State: "Bihar", Pincode: "800001"},
			Rating:       entity.Rating{Average: 4.5, Count: 128},
			Verification: entity.Verification{IsGSTVerified: true, IsTrustSEAL: true, IsVerifiedSupplier: true, YearsInBusiness: 12},
			ResponseRate: 95,
			Services:     []string{"Land Survey", "Boundary Demarcation"},
			Tags:         []string{"dgps"},
			PriceRange:   &entity.PriceRange{Min: 5000, Max: 25000},
			IsPremium:    true,
			CreatedAt:    created,
			UpdatedAt:    created,
		},
		{
			ID:           "2",
			Name:         "Priya Sharma",
			BusinessName: "Sharma Survey Solutions",
			Category:     "land-surveyor",
			Location:     entity.Location{City: "Noida", State: "Uttar Pradesh", Pincode: "201301"},
			Rating:       entity.Rating{Average: 4.2, Count: 86},
			Verification: entity.Verification{IsGSTVerified: true, IsTrustSEAL: true, YearsInBusiness: 8},
			ResponseRate: 88,
			Services:     []string{"Land Survey", "Plot Measurement"},
			PriceRange:   &entity.PriceRange{Min: 4000, Max: 20000},
			CreatedAt:    created,
			UpdatedAt:    created,
		},
		{
			ID:           "3",
			Name:         "Amit Singh",
			BusinessName: "Singh Survey & Mapping",
			Category:     "land-surveyor",
			Location:     entity.Location{City: "Patna", State: "Bihar", Pincode: "800020"},
			Rating:       entity.Rating{Average: 4.0, Count: 54},
			Verification: entity.Verification{IsGSTVerified: true, IsVerifiedSupplier: true, YearsInBusiness: 15},
			ResponseRate: 92,
			Services:     []string{"Land Survey", "Topographic Survey"},
			PriceRange:   &entity.PriceRange{Min: 3000, Max: 15000},
			CreatedAt:    created,
			UpdatedAt:    created,
		},
		{
			ID:           "4",
			Name:         "Vikram Gupta",
			BusinessName: "Gupta Geo Surveys",
			Category:     "land-surveyor",
			Location:     entity.Location{City: "Patna", State: "Bihar", Pincode: "800014"},
			Rating:       entity.Rating{Average: 3.8, Count: 31},
			Verification: entity.Verification{IsGSTVerified: true, YearsInBusiness: 5},
			ResponseRate: 75,
			Services:     []string{"Land Survey", "Contour Survey"},
			CreatedAt:    created,
			UpdatedAt:    created,
		},
	}
}

func names(providers []entity.Provider) []string {
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.Name)
	}
	return out
}
