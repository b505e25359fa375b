/*
Package workers sizes and runs the bounded worker pools used by the feature
builders.

# Sizing

Count, ForCPU and ForIO derive a worker count from runtime.GOMAXPROCS(0),
which Go sets from container CPU limits, rather than runtime.NumCPU():

	numWorkers := workers.ForCPU(0) // one worker per available CPU

The IMGDB_WORKERS environment variable pins the count for every pool:

	IMGDB_WORKERS=2 imgdb palette

# Pool

Pool is a fixed set of goroutines pulling jobs from a bounded queue. Each job
is handed to a pure function returning a value or an error; the pool never
shares state between jobs and never writes anywhere except its result
channel. A single coordinator drains the results and owns all side effects:

	pool := workers.NewPool(workers.ForCPU(0), computePalette)
	for r := range pool.Run(ctx, files) {
		if r.Err != nil {
			// log and skip
			continue
		}
		// collect r.Value
	}

Results arrive in completion order, not submission order. Cancelling ctx
stops dispatch; jobs already started run to completion and their results are
still delivered, so the coordinator can persist them before returning.
*/
package workers
