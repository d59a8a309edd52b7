package ingestion

import (
	"context"

	"github.com/jeovahfialho/lotwise/internal/transport"
	"github.com/sourcegraph/conc"
)

// SubmitFunc entrega um trade lido do arquivo ao serviço de trades.
type SubmitFunc func(ctx context.Context, trade ParsedTrade) error

// WorkerPool distribui trades por símbolo: todos os trades de um símbolo vão
// para a mesma fila e são submetidos na ordem em que chegaram.
type WorkerPool struct {
	workers int
	submit  SubmitFunc
	queues  []chan Job
	wg      conc.WaitGroup
}

type Job struct {
	Trade  ParsedTrade
	Result chan<- JobResult
}

type JobResult struct {
	Line   int
	Symbol string
	Error  error
}

func NewWorkerPool(workers int, submit SubmitFunc) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	queues := make([]chan Job, workers)
	for i := range queues {
		queues[i] = make(chan Job, 64)
	}
	return &WorkerPool{
		workers: workers,
		submit:  submit,
		queues:  queues,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		queue := wp.queues[i]
		wp.wg.Go(func() {
			wp.worker(ctx, queue)
		})
	}
}

// Stop fecha as filas e espera os workers terminarem o que já foi enfileirado.
func (wp *WorkerPool) Stop() {
	for _, queue := range wp.queues {
		close(queue)
	}
	wp.wg.Wait()
}

func (wp *WorkerPool) Submit(job Job) {
	wp.queues[transport.Partition(job.Trade.Symbol, wp.workers)] <- job
}

func (wp *WorkerPool) worker(ctx context.Context, queue <-chan Job) {
	for job := range queue {
		result := JobResult{Line: job.Trade.Line, Symbol: job.Trade.Symbol}
		if err := ctx.Err(); err != nil {
			result.Error = err
		} else {
			result.Error = wp.submit(ctx, job.Trade)
		}
		job.Result <- result
	}
}
