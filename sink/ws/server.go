package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pha/acquisition"
	"pha/codec/json"
	"pha/log"
)

const ErrorMethodNotAllow int = 405

var ErrorStopped = errors.New("websocket server stopped")

// Server streams snapshots to live displays. It is both the http.Handler
// clients connect to and the acquisition.Sink the loop publishes to. A new
// client first receives the latest snapshot.
type Server struct {
	opts  Options
	codec *json.Processor

	upgrader websocket.Upgrader

	mutexConns sync.Mutex
	conns      map[*Conn]struct{}
	latest     []byte
	stopped    bool

	wgConns sync.WaitGroup
}

func NewServer(opts ...Option) *Server {
	svr := &Server{
		codec: json.NewDefault(),
		conns: make(map[*Conn]struct{}),
	}

	for _, o := range opts {
		o(&svr.opts)
	}

	if svr.opts.MaxConnNum == 0 {
		svr.opts.MaxConnNum = DefaultMaxConnNum
	}

	if svr.opts.MaxWriteBufLen == 0 {
		svr.opts.MaxWriteBufLen = DefaultMaxWriteBufLen
	}

	if svr.opts.MaxMsgLen == 0 {
		svr.opts.MaxMsgLen = DefaultMaxMsgLen
	}

	if svr.opts.HTTPTimeout == 0 {
		svr.opts.HTTPTimeout = DefaultHTTPTimeOut
	}

	svr.upgrader = websocket.Upgrader{
		HandshakeTimeout: svr.opts.HTTPTimeout,
		CheckOrigin:      func(_ *http.Request) bool { return true },
	}

	return svr
}

func (svr *Server) Options() Options {
	return svr.opts
}

func (svr *Server) String() string {
	return "ws-server"
}

func (svr *Server) Stop() {
	svr.mutexConns.Lock()
	svr.stopped = true

	for conn := range svr.conns {
		conn.Close()
	}

	svr.conns = nil
	svr.mutexConns.Unlock()

	svr.wgConns.Wait()
}

func (svr *Server) Clients() int {
	svr.mutexConns.Lock()
	defer svr.mutexConns.Unlock()

	return len(svr.conns)
}

// Publish encodes the snapshot once and queues it for every client.
func (svr *Server) Publish(s *acquisition.Snapshot) error {
	data, err := svr.codec.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %w", err)
	}

	svr.mutexConns.Lock()
	defer svr.mutexConns.Unlock()

	if svr.stopped {
		return ErrorStopped
	}

	svr.latest = data

	for conn := range svr.conns {
		if !conn.WriteMessage(data) {
			delete(svr.conns, conn)
			log.Warn("DropClient", zap.String("id", conn.ID()))
		}
	}

	return nil
}

func (svr *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", ErrorMethodNotAllow)

		return
	}

	wsConn, err := svr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("UpgradeConn", zap.String("err", err.Error()))

		return
	}

	wsConn.SetReadLimit(int64(svr.opts.MaxMsgLen))

	conn := newConn(uuid.New().String(), wsConn, svr.opts.MaxWriteBufLen)

	svr.mutexConns.Lock()
	if svr.stopped || uint32(len(svr.conns)) >= svr.opts.MaxConnNum {
		svr.mutexConns.Unlock()
		conn.Close()

		return
	}

	svr.conns[conn] = struct{}{}
	svr.wgConns.Add(1)

	if svr.latest != nil {
		conn.WriteMessage(svr.latest)
	}
	svr.mutexConns.Unlock()

	defer svr.wgConns.Done()

	log.Info("ConnectClient", zap.String("id", conn.ID()), zap.String("addr", conn.RemoteAddr().String()))

	// displays only listen; reading detects the close
	for {
		if _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	conn.Close()

	svr.mutexConns.Lock()
	delete(svr.conns, conn)
	svr.mutexConns.Unlock()

	log.Info("DisconnectClient", zap.String("id", conn.ID()))
}
