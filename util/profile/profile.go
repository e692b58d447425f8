package profile

import (
	"context"
	"errors"
	"net"
	"net/http"

	// pprof.
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"

	"pha/log"
	"pha/util/timer"
)

const DefaultHeapInterval = 30 * time.Second

// Profiler serves /debug/pprof on its own listener and, when a heap file
// is named, rewrites it periodically.
type Profiler struct {
	srv    *http.Server
	ln     net.Listener
	memf   string
	ticker timer.Ticker
}

func Start(addr, memf string) (*Profiler, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	p := &Profiler{
		srv:  &http.Server{Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second},
		ln:   ln,
		memf: memf,
	}

	go func() {
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("ServeProfile", zap.String("err", err.Error()))
		}
	}()

	if memf != "" {
		p.ticker = timer.NewTicker(DefaultHeapInterval, p.writeHeap)
	}

	log.Info("StartProfile", zap.String("addr", ln.Addr().String()), zap.String("heap", memf))

	return p, nil
}

// Addr is the bound address, useful when started on port 0.
func (p *Profiler) Addr() string {
	return p.ln.Addr().String()
}

func (p *Profiler) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.writeHeap()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = p.srv.Shutdown(ctx)
}

func (p *Profiler) writeHeap() {
	f, err := os.Create(p.memf)
	if err != nil {
		log.Warn("CreateHeapFile", zap.String("err", err.Error()))

		return
	}
	defer f.Close()

	runtime.GC() // get up-to-date statistics

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Warn("WriteHeapFile", zap.String("err", err.Error()))
	}
}
