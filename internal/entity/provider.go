package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidProvider marks a provider record that violates catalogue invariants.
var ErrInvalidProvider = errors.New("invalid provider")

// Provider represents a vendor listed in the directory.
type Provider struct {
	ID              string       `json:"id" yaml:"id"`
	Name            string       `json:"name" yaml:"name"`
	BusinessName    string       `json:"businessName" yaml:"businessName"`
	Description     string       `json:"description,omitempty" yaml:"description"`
	Category        string       `json:"category" yaml:"category"`
	SubCategory     string       `json:"subCategory,omitempty" yaml:"subCategory"`
	Location        Location     `json:"location" yaml:"location"`
	Contact         Contact      `json:"contact" yaml:"contact"`
	Rating          Rating       `json:"rating" yaml:"rating"`
	Verification    Verification `json:"verification" yaml:"verification"`
	ResponseRate    float64      `json:"responseRate" yaml:"responseRate"`
	Services        []string     `json:"services" yaml:"services"`
	Specializations []string     `json:"specializations,omitempty" yaml:"specializations"`
	Tags            []string     `json:"tags,omitempty" yaml:"tags"`
	PriceRange      *PriceRange  `json:"priceRange,omitempty" yaml:"priceRange"`
	IsPremium       bool         `json:"isPremium" yaml:"isPremium"`
	CreatedAt       time.Time    `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt" yaml:"updatedAt"`
}

// Location describes where a provider operates from.
type Location struct {
	City        string       `json:"city" yaml:"city"`
	State       string       `json:"state" yaml:"state"`
	Pincode     string       `json:"pincode,omitempty" yaml:"pincode"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Contact holds the public contact channels of a provider.
type Contact struct {
	Phone   string `json:"phone,omitempty" yaml:"phone"`
	Email   string `json:"email,omitempty" yaml:"email"`
	Website string `json:"website,omitempty" yaml:"website"`
}

// Rating aggregates buyer reviews.
type Rating struct {
	Average float64 `json:"average" yaml:"average"`
	Count   int     `json:"count" yaml:"count"`
}

// Verification lists the trust badges a provider holds.
type Verification struct {
	IsGSTVerified      bool `json:"isGSTVerified" yaml:"isGSTVerified"`
	IsTrustSEAL        bool `json:"isTrustSEAL" yaml:"isTrustSEAL"`
	IsVerifiedSupplier bool `json:"isVerifiedSupplier" yaml:"isVerifiedSupplier"`
	YearsInBusiness    int  `json:"yearsInBusiness" yaml:"yearsInBusiness"`
}

// PriceRange is an indicative price band in INR.
type PriceRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Validate checks the invariants every catalogue record must satisfy.
func (p Provider) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProvider)
	}
	if !finite(p.Rating.Average) || p.Rating.Average < 0 || p.Rating.Average > 5 {
		return fmt.Errorf("%w: provider %s rating %.2f outside [0,5]", ErrInvalidProvider, p.ID, p.Rating.Average)
	}
	if !finite(p.ResponseRate) || p.ResponseRate < 0 || p.ResponseRate > 100 {
		return fmt.Errorf("%w: provider %s response rate %.2f outside [0,100]", ErrInvalidProvider, p.ID, p.ResponseRate)
	}
	if p.PriceRange != nil {
		if !finite(p.PriceRange.Min) || !finite(p.PriceRange.Max) {
			return fmt.Errorf("%w: provider %s price range is not a finite number", ErrInvalidProvider, p.ID)
		}
		if p.PriceRange.Min > p.PriceRange.Max {
			return fmt.Errorf("%w: provider %s price range min exceeds max", ErrInvalidProvider, p.ID)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
