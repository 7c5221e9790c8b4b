/*
Package observability turns the lifecycle hooks of caches and viewer sessions
into structured logs and Prometheus metrics.

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.Chain(observability.LogHooks(logger), metrics.Hooks())
	eng, err := trajview.New(client, client, trajview.WithHooks(hooks))
*/
package observability
