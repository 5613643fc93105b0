package workload

import "github.com/Sumatoshi-tech/effort/pkg/metrics"

// Scalar metric names.
const (
	MetricPW         = "pw"
	MetricNAP        = "nap"
	MetricNTP        = "ntp"
	MetricPWS        = "pws"
	MetricRPWS       = "rpws"
	MetricPIS        = "pis"
	MetricRPIS       = "rpis"
	MetricAuthorGini = "author_gini"
)

const (
	typeWorkload   = "workload"
	typeInequality = "inequality"
)

// NewRegistry returns the project-wide scalar metrics, selectable by name.
func NewRegistry() *metrics.Registry[*Engine, float64] {
	return metrics.NewRegistry[*Engine, float64]().MustRegister(
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricPW,
			MetricDisplayName: "Project workload",
			MetricDescription: "Total number of classified file touches.",
			MetricType:        typeWorkload,
		}, func(e *Engine) float64 { return float64(e.PW()) }),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricNAP,
			MetricDisplayName: "Authors",
			MetricDescription: "Number of distinct authors with at least one touch.",
			MetricType:        typeWorkload,
		}, func(e *Engine) float64 { return float64(e.NAP()) }),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricNTP,
			MetricDisplayName: "Activity types",
			MetricDescription: "Number of distinct activity labels observed.",
			MetricType:        typeWorkload,
		}, func(e *Engine) float64 { return float64(e.NTP()) }),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricPWS,
			MetricDisplayName: "Workload specialisation",
			MetricDescription: "Gini coefficient of workload across activity types. " +
				"0 means every type got the same number of touches.",
			MetricType: typeInequality,
		}, (*Engine).PWS),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricRPWS,
			MetricDisplayName: "Relative workload specialisation",
			MetricDescription: "Gini coefficient of the relative workload of each activity type.",
			MetricType:        typeInequality,
		}, (*Engine).RPWS),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricPIS,
			MetricDisplayName: "Involvement specialisation",
			MetricDescription: "Gini coefficient of the number of authors involved in each activity type.",
			MetricType:        typeInequality,
		}, (*Engine).PIS),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricRPIS,
			MetricDisplayName: "Relative involvement specialisation",
			MetricDescription: "Gini coefficient of the share of authors involved in each activity type.",
			MetricType:        typeInequality,
		}, (*Engine).RPIS),
		metrics.New(metrics.MetricMeta{
			MetricName:        MetricAuthorGini,
			MetricDisplayName: "Author concentration",
			MetricDescription: "Gini coefficient of the total workload of each author.",
			MetricType:        typeInequality,
		}, (*Engine).AuthorGini),
	)
}
