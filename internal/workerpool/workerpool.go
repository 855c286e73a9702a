package workerpool

import (
	"sync"

	"PBW/internal/config"
)

// StartWorkerPool fans build targets out to numWorkers goroutines and
// blocks until every target has been processed. The jobs channel is
// buffered to the whole batch so submission never blocks.
func StartWorkerPool(numWorkers int, targets []config.Target, buildTarget func(wg *sync.WaitGroup, jobs <-chan config.Target)) {
	var wg sync.WaitGroup
	jobs := make(chan config.Target, len(targets))

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go buildTarget(&wg, jobs)
	}

	for _, target := range targets {
		jobs <- target
	}
	close(jobs)

	wg.Wait()
}
