// Package api implements a development relay. It serves the relay HTTP
// endpoints against an in-memory mock chain so that clients can be
// exercised end to end without a real relay.
package api

import (
	"github.com/cpacia/bundlr/currency/mock"
	"github.com/cpacia/bundlr/models"
	"github.com/gorilla/mux"
	"github.com/op/go-logging"
	"math/big"
	"net"
	"net/http"
	"sync"
)

var log = logging.MustGetLogger("api")

// GatewayConfig configures the dev relay.
type GatewayConfig struct {
	Listener   net.Listener
	NoCors     bool
	AllowedIPs map[string]bool

	// Version and Gateway are published on /info.
	Version string
	Gateway string

	// BytePrice is charged per byte of every uploaded bundle. Zero makes
	// uploads free.
	BytePrice int64
}

// Gateway is a dev relay backed by a mock chain. Its deposit address is an
// account on the same network the clients fund from.
type Gateway struct {
	listener net.Listener
	network  *mock.Network
	deposit  *mock.Currency
	handler  http.Handler
	config   *GatewayConfig

	mtx      sync.Mutex
	balances map[string]*big.Int
	credited map[models.TxID]bool
	uploads  map[string]*upload
}

// NewGateway returns a dev relay on network. The relay gets a fresh deposit
// account on the network.
func NewGateway(network *mock.Network, config *GatewayConfig) (*Gateway, error) {
	deposit, err := mock.NewCurrency(network)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		listener: config.Listener,
		network:  network,
		deposit:  deposit,
		config:   config,
		balances: make(map[string]*big.Int),
		credited: make(map[models.TxID]bool),
		uploads:  make(map[string]*upload),
	}

	r := g.newRouter()
	if !config.NoCors {
		r.Use(g.CORSAllowAllOriginsMiddleware)
	}
	r.Use(g.AllowedIPsMiddleware)
	g.handler = r
	return g, nil
}

// DepositAddress returns the mock chain address the relay is funded at.
func (g *Gateway) DepositAddress() string {
	return g.deposit.Address()
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Close shuts down the Gateway listener.
func (g *Gateway) Close() error {
	return g.listener.Close()
}

// Serve begins listening on the configured address.
func (g *Gateway) Serve() error {
	log.Infof("Dev relay listening on %s", g.listener.Addr())
	return http.Serve(g.listener, g.handler)
}

func (g *Gateway) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/info", g.handleGETInfo).Methods("GET")
	r.HandleFunc("/tx/{chain}", g.handlePOSTTx).Methods("POST")
	r.HandleFunc("/tx/{id}", g.handleGETTx).Methods("GET")
	r.HandleFunc("/account/balance/{chain}", g.handleGETBalance).Methods("GET")
	r.HandleFunc("/account/balance/{chain}", g.handlePOSTBalance).Methods("POST")
	return r
}
