package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"phenotab/models"
)

// DistributionAnalyzer computes distribution shape statistics for the
// measured values of one column.
type DistributionAnalyzer struct{}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{}
}

// Analyze fills the summary and shape statistics for data. The caller sets
// the column identity and the missing count.
func (da *DistributionAnalyzer) Analyze(data []float64) (models.ColumnProfile, error) {
	profile := models.ColumnProfile{Count: len(data)}

	mean, err := stats.Mean(data)
	if err != nil {
		return profile, err
	}

	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return profile, err
	}

	min, err := stats.Min(data)
	if err != nil {
		return profile, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return profile, err
	}

	median, err := stats.Median(data)
	if err != nil {
		return profile, err
	}

	// Quartiles need at least four values under the percentile rule
	var q25, q75 float64
	if len(data) >= 4 {
		q25, err = stats.Percentile(data, 25)
		if err != nil {
			return profile, err
		}

		q75, err = stats.Percentile(data, 75)
		if err != nil {
			return profile, err
		}
	}

	skewness := calculateSkewness(data, mean, stdDev)
	kurtosis := calculateKurtosis(data, mean, stdDev)

	profile.Mean = mean
	profile.StdDev = stdDev
	profile.Min = min
	profile.Max = max
	profile.Median = median
	profile.Q25 = q25
	profile.Q75 = q75
	profile.Skewness = skewness
	profile.Kurtosis = kurtosis
	profile.NormalShape = hasNormalShape(data, skewness, kurtosis)

	return profile, nil
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0

	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n

	// Bias correction for sample skewness
	correction := math.Sqrt(n*(n-1)) / (n - 2)
	skewness *= correction

	return skewness
}

// calculateKurtosis computes sample kurtosis (3 is normal)
func calculateKurtosis(data []float64, mean, stdDev float64) float64 {
	if len(data) < 4 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumFourthDeviations := 0.0

	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumFourthDeviations += deviation * deviation * deviation * deviation
	}

	kurtosis := sumFourthDeviations / n

	// Bias correction for sample excess kurtosis
	excessKurtosis := kurtosis - 3
	correction := (n - 1) / ((n - 2) * (n - 3))
	excessKurtosis = excessKurtosis*correction + 6/(n+1)

	return excessKurtosis + 3
}

// hasNormalShape flags columns whose shape is close enough to normal for the
// summary statistics to be read at face value. This is a skewness/kurtosis
// approximation, not a full normality test.
func hasNormalShape(data []float64, skewness, kurtosis float64) bool {
	if len(data) < 3 {
		return false
	}

	testStat := math.Abs(skewness) + math.Abs(kurtosis-3)/2

	// Approximate p-value via the chi-square distribution
	chiDist := distuv.ChiSquared{K: 2}
	pValue := 1 - chiDist.CDF(testStat*testStat)

	return pValue > 0.05
}
