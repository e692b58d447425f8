package metrics

const (
	DefaultNamespace   = "pha"
	DefaultBucketMin   = 1.0
	DefaultBucketMax   = 5.0
	DefaultBucketCount = 16
)

type Options struct {
	BucketMin   float64
	BucketMax   float64
	BucketCount int
}

type Option func(*Options)

// OptionWithBuckets lays count equal buckets over [min, max], normally the
// histogram range of the run.
func OptionWithBuckets(min, max float64, count int) Option {
	return func(o *Options) {
		o.BucketMin = min
		o.BucketMax = max
		o.BucketCount = count
	}
}
